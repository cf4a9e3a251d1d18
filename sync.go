package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pearl-natalia/lumen/ingest"
	"github.com/pearl-natalia/lumen/risk"
)

// runScrape pulls new WRPS incidents and appends them to the incidents
// CSV, the same rows a later -sync run uploads.
func runScrape(ctx context.Context, incidents *Path) error {
	if !incidents.IsFile() {
		return fmt.Errorf("scrape writes a CSV, incidents source is %s", incidents)
	}
	existing, err := risk.ReadIncidents(incidents.File)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(existing))
	for _, row := range existing {
		known[row.IncidentID] = struct{}{}
	}
	rows, err := ingest.NewScraper().Fetch(ctx, known)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		log.Infoln("no new incidents")
		return nil
	}
	if err := risk.AppendIncidents(incidents.File, rows); err != nil {
		return err
	}
	log.Infof("appended %d new incidents to %s", len(rows), incidents.File)
	return nil
}

// runSync pushes the CSV sources into mongo and then rewrites them from
// what mongo holds, so every instance routes on the same data. Empty
// collections never truncate a CSV.
func (a *App) runSync(ctx context.Context) error {
	if a.store == nil {
		return fmt.Errorf("sync needs mongo, set -mongo_uri or MONGO_URI")
	}
	now := time.Now()

	camSources := []struct {
		path *Path
		typ  risk.CameraType
	}{
		{a.cfg.RedLightCams, risk.CameraRedLight},
		{a.cfg.SpeedCams, risk.CameraSpeed},
	}

	// upload
	if a.cfg.Incidents.IsFile() {
		rows, err := risk.ReadIncidents(a.cfg.Incidents.File)
		if err != nil {
			return err
		}
		inserted, modified, err := a.store.UpsertIncidents(ctx, rows, now)
		if err != nil {
			return err
		}
		log.Infof("incidents up: %d inserted, %d modified", inserted, modified)
	}
	for _, src := range camSources {
		if !src.path.IsFile() {
			continue
		}
		rows, err := risk.ReadCameras(src.path.File, src.typ)
		if err != nil {
			return err
		}
		inserted, modified, err := a.store.UpsertCameras(ctx, rows)
		if err != nil {
			return err
		}
		log.Infof("%s cameras up: %d inserted, %d modified", src.typ, inserted, modified)
	}

	// download
	if a.cfg.Incidents.IsFile() {
		docs, err := a.store.AllIncidents(ctx)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			log.Warnln("no incidents in mongo, export skipped")
		} else {
			rows := make([]risk.Incident, len(docs))
			for i, doc := range docs {
				rows[i] = doc.CSV()
			}
			if err := risk.WriteIncidents(a.cfg.Incidents.File, rows); err != nil {
				return err
			}
			log.Infof("exported %d incidents to %s", len(rows), a.cfg.Incidents)
		}
	}
	for _, src := range camSources {
		if !src.path.IsFile() {
			continue
		}
		cams, err := a.store.AllCameras(ctx, src.typ)
		if err != nil {
			return err
		}
		if len(cams) == 0 {
			log.Warnf("no %s cameras in mongo, export skipped", src.typ)
			continue
		}
		if err := risk.WriteCameras(src.path.File, cams); err != nil {
			return err
		}
		log.Infof("exported %d %s cameras to %s", len(cams), src.typ, src.path)
	}
	return nil
}

package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	CollIncidents = "incidents"
	CollCameras   = "cameras"
)

// Store keeps incident and camera records in MongoDB so scrapes survive
// restarts and several instances can share one dataset.
type Store struct {
	client *mongo.Client
	db     string
}

func NewStore(ctx context.Context, uri, db string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{client: client, db: db}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// collection resolves a possibly path-addressed collection, empty db
// means the store's own database.
func (s *Store) collection(db, coll string) *mongo.Collection {
	if db == "" {
		db = s.db
	}
	return s.client.Database(db).Collection(coll)
}

func (s *Store) incidents() *mongo.Collection {
	return s.collection("", CollIncidents)
}

func (s *Store) cameras() *mongo.Collection {
	return s.collection("", CollCameras)
}

// EnsureIndexes creates the unique indexes the upserts dedupe against.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.incidents().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "incident_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("incident_id_unique"),
	})
	if err != nil {
		return fmt.Errorf("create incidents index: %w", err)
	}
	_, err = s.cameras().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "camera_type", Value: 1},
			{Key: "city", Value: 1},
			{Key: "primary_road", Value: 1},
			{Key: "cross_street_or_notes", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("camera_unique"),
	})
	if err != nil {
		return fmt.Errorf("create cameras index: %w", err)
	}
	return nil
}

// StoredIncident is the persisted incident shape. IncidentDate is the
// parsed time, nil when the page date did not parse.
type StoredIncident struct {
	IncidentID   string     `bson:"incident_id"`
	PostedOn     string     `bson:"posted_on,omitempty"`
	IncidentDate *time.Time `bson:"incident_date,omitempty"`
	CallType     string     `bson:"call_type,omitempty"`
	TitleLine    string     `bson:"title_line,omitempty"`
	Location     string     `bson:"location,omitempty"`
	City         string     `bson:"city,omitempty"`
	PageURL      string     `bson:"page_url,omitempty"`
}

// CSV maps the stored document back to the CSV row shape, with the
// parsed time rendered so downstream date parsing still works.
func (d StoredIncident) CSV() Incident {
	dateStr := ""
	if d.IncidentDate != nil {
		dateStr = d.IncidentDate.Format("2006-01-02 15:04:05")
	}
	return Incident{
		IncidentID:   d.IncidentID,
		PostedOn:     d.PostedOn,
		IncidentDate: dateStr,
		CallType:     d.CallType,
		TitleLine:    d.TitleLine,
		Location:     d.Location,
		City:         d.City,
		PageURL:      d.PageURL,
	}
}

type cameraDoc struct {
	CameraType         string `bson:"camera_type"`
	City               string `bson:"city"`
	PrimaryRoad        string `bson:"primary_road"`
	CrossStreetOrNotes string `bson:"cross_street_or_notes"`
}

func bulkCounts(res *mongo.BulkWriteResult, err error, what string) (int64, int64, error) {
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) {
			dups := 0
			for _, we := range bwe.WriteErrors {
				if we.Code == 11000 {
					dups++
				}
			}
			if dups > 0 && dups == len(bwe.WriteErrors) {
				// unique-index races, the documents are already there
				log.Warnf("skipped %d duplicate %s", dups, what)
			} else {
				return 0, 0, fmt.Errorf("bulk write %s: %w", what, err)
			}
		} else {
			return 0, 0, fmt.Errorf("bulk write %s: %w", what, err)
		}
	}
	if res == nil {
		return 0, 0, nil
	}
	return res.UpsertedCount, res.ModifiedCount, nil
}

// UpsertIncidents writes incident rows keyed by incident_id. Titles are
// cleaned and dates parsed on the way in. Returns inserted and modified
// counts.
func (s *Store) UpsertIncidents(ctx context.Context, rows []Incident, now time.Time) (int64, int64, error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}
	models := make([]mongo.WriteModel, 0, len(rows))
	for _, row := range rows {
		doc := StoredIncident{
			IncidentID:   row.IncidentID,
			PostedOn:     row.PostedOn,
			IncidentDate: ParseWhen(row.IncidentDate, now),
			CallType:     row.CallType,
			TitleLine:    row.Title(),
			Location:     row.Location,
			City:         row.City,
			PageURL:      row.PageURL,
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"incident_id": doc.IncidentID}).
			SetUpdate(bson.M{"$set": doc}).
			SetUpsert(true))
	}
	res, err := s.incidents().BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return bulkCounts(res, err, "incidents")
}

// UpsertCameras writes camera rows keyed by the full camera identity.
// Rows missing city, road or cross street are skipped.
func (s *Store) UpsertCameras(ctx context.Context, rows []Camera) (int64, int64, error) {
	models := make([]mongo.WriteModel, 0, len(rows))
	for _, row := range rows {
		doc := cameraDoc{
			CameraType:         string(row.CameraType),
			City:               strings.TrimSpace(row.City),
			PrimaryRoad:        strings.TrimSpace(row.PrimaryRoad),
			CrossStreetOrNotes: strings.TrimSpace(row.CrossStreetOrNotes),
		}
		if doc.City == "" || doc.PrimaryRoad == "" || doc.CrossStreetOrNotes == "" {
			continue
		}
		filter := bson.M{
			"camera_type":           doc.CameraType,
			"city":                  doc.City,
			"primary_road":          doc.PrimaryRoad,
			"cross_street_or_notes": doc.CrossStreetOrNotes,
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.M{"$set": doc}).
			SetUpsert(true))
	}
	if len(models) == 0 {
		return 0, 0, nil
	}
	res, err := s.cameras().BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return bulkCounts(res, err, "cameras")
}

// RecentIncidents returns incidents dated on or after since, newest
// window the map overlay needs.
func (s *Store) RecentIncidents(ctx context.Context, since time.Time, limit int64) ([]StoredIncident, error) {
	cur, err := s.incidents().Find(ctx,
		bson.M{"incident_date": bson.M{"$gte": since}},
		options.Find().SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("find incidents: %w", err)
	}
	var docs []StoredIncident
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode incidents: %w", err)
	}
	return docs, nil
}

// IncidentsIn reads every incident document in a path-addressed
// collection.
func (s *Store) IncidentsIn(ctx context.Context, db, coll string) ([]StoredIncident, error) {
	cur, err := s.collection(db, coll).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find incidents: %w", err)
	}
	var docs []StoredIncident
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode incidents: %w", err)
	}
	return docs, nil
}

// AllIncidents returns every stored incident.
func (s *Store) AllIncidents(ctx context.Context) ([]StoredIncident, error) {
	return s.IncidentsIn(ctx, "", CollIncidents)
}

// CamerasIn reads camera documents in a path-addressed collection,
// optionally only one type.
func (s *Store) CamerasIn(ctx context.Context, db, coll string, cameraType CameraType) ([]Camera, error) {
	filter := bson.M{}
	if cameraType != "" {
		filter["camera_type"] = string(cameraType)
	}
	cur, err := s.collection(db, coll).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find cameras: %w", err)
	}
	var docs []cameraDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode cameras: %w", err)
	}
	cameras := make([]Camera, len(docs))
	for i, doc := range docs {
		cameras[i] = Camera{
			CameraType:         CameraType(doc.CameraType),
			City:               doc.City,
			PrimaryRoad:        doc.PrimaryRoad,
			CrossStreetOrNotes: doc.CrossStreetOrNotes,
		}
	}
	return cameras, nil
}

// AllCameras returns every stored camera, optionally only one type.
func (s *Store) AllCameras(ctx context.Context, cameraType CameraType) ([]Camera, error) {
	return s.CamerasIn(ctx, "", CollCameras, cameraType)
}

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"

	"github.com/pearl-natalia/lumen/router"
)

var (
	// service configuration
	listenAddr   = flag.String("listen", "localhost:5500", "HTTP listening address")
	mongoURI     = flag.String("mongo_uri", "", "mongo db uri (defaults to MONGO_URI)")
	mongoDB      = flag.String("mongo_db", "", "mongo database name (defaults to MONGO_DB, then public_safety)")
	incidentsStr = flag.String("incidents", "sources/incidents.csv", "incidents source [format: {fspath} or {db}.{col}]")
	redLightStr  = flag.String("red-light-cameras", "sources/red_light_cameras.csv", "red light cameras source [format: {fspath} or {db}.{col}]")
	speedStr     = flag.String("speed-cameras", "sources/speed_cameras.csv", "speed cameras source [format: {fspath} or {db}.{col}]")
	dataDir      = flag.String("data", "data", "directory the route artifacts are written to")
	staticDir    = flag.String("static", "", "static frontend dir (empty means API only)")
	cacheFile    = flag.String("geocode-cache", "sources/geocode_cache.csv", "geocode cache csv path")
	nightArg     = flag.String("night", "auto", "night pricing [auto, on, off]")
	logLevel     = flag.String("log-level", "info", "log level [debug, info, warn, error, fatal, panic]")

	// one-shot generation instead of serving
	startArg = flag.String("start", "", "route start, \"lon,lat\" or a place name")
	endArg   = flag.String("end", "", "route end, \"lon,lat\" or a place name")
	modeArg  = flag.String("mode", "both", "one-shot route mode [both, safest, shortest]")

	// maintenance modes
	scrapeMode = flag.Bool("scrape", false, "scrape new WRPS incidents into the incidents CSV and exit")
	syncMode   = flag.Bool("sync", false, "sync the CSV sources with mongo and exit")

	// performance
	benchmark = flag.Bool("benchmark", false, "benchmark mode")
	pprofAddr = flag.String("pprof", "", "pprof listening address (empty means disabled)")

	LOG_LEVELS = map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}
)

func main() {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	flag.Parse()
	if level, ok := LOG_LEVELS[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		logrus.Fatalf("invalid log level: %s", *logLevel)
	}
	if err := godotenv.Load(); err != nil {
		log.Debugln("no .env file loaded")
	}

	incidents, err := NewPath(*incidentsStr)
	if err != nil {
		logrus.Fatalf("invalid incidents source: %s", err)
	}
	redLight, err := NewPath(*redLightStr)
	if err != nil {
		logrus.Fatalf("invalid red light cameras source: %s", err)
	}
	speed, err := NewPath(*speedStr)
	if err != nil {
		logrus.Fatalf("invalid speed cameras source: %s", err)
	}

	ctx := context.Background()

	if *scrapeMode {
		// scraping needs neither the geocoder nor mongo
		if err := runScrape(ctx, incidents); err != nil {
			log.Fatalf("scrape failed: %v", err)
		}
		return
	}

	uri := *mongoURI
	if uri == "" {
		uri = os.Getenv("MONGO_URI")
	}
	db := *mongoDB
	if db == "" {
		db = os.Getenv("MONGO_DB")
	}
	if db == "" {
		db = "public_safety"
	}

	app, err := NewApp(ctx, Config{
		MapboxToken:  os.Getenv("MAPBOX_TOKEN"),
		MongoURI:     uri,
		MongoDB:      db,
		Incidents:    incidents,
		RedLightCams: redLight,
		SpeedCams:    speed,
		DataDir:      *dataDir,
		StaticDir:    *staticDir,
		CacheFile:    *cacheFile,
		Night:        *nightArg,
		Params:       router.DefaultCostParams(),
	})
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	if *pprofAddr != "" {
		startHTTPDebugger(*pprofAddr)
	}

	if *syncMode {
		if err := app.runSync(ctx); err != nil {
			log.Fatalf("sync failed: %v", err)
		}
		app.Close(ctx)
		return
	}

	if *benchmark {
		runBenchmark(app)
		app.Close(ctx)
		return
	}

	if *startArg != "" || *endArg != "" {
		if err := app.runOnce(ctx, *startArg, *endArg, *modeArg); err != nil {
			log.Fatalf("route failed: %v", err)
		}
		app.Close(ctx)
		return
	}

	s := &http.Server{
		Addr:    *listenAddr,
		Handler: app.Handler(),
	}

	// graceful exit, a second signal force-quits
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Info("stopping...")
		go func() {
			<-signalCh
			os.Exit(1)
		}()
		s.Close()
		app.Close(context.Background())
		os.Exit(0)
	}()

	log.Infof("server listening at %v", s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to serve: %v", err)
	}
	time.Sleep(1 * time.Second) // wait out the graceful exit
	log.Info("lumen closes")
}

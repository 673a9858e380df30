package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"price_forecast/internal/cache"
	"price_forecast/internal/ingest"
	"price_forecast/internal/model"
	"price_forecast/internal/predictor"
	"price_forecast/internal/store"
)

const (
	refreshKey = "refresh"

	defaultInterval = 15 * time.Minute
	defaultTimeout  = 45 * time.Second
)

// ErrNoData is returned by SetModel before the first refresh has completed.
var ErrNoData = errors.New("no feed snapshot yet")

// Warning reports a degraded feed during a refresh.
type Warning struct {
	RunID   string    `json:"run_id"`
	Feed    string    `json:"feed"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Callback receives pipeline events.
type Callback interface {
	OnForecast(f model.Forecast)
	OnWarning(w Warning)
}

// Options configures an Engine. Zero values take defaults.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Model    model.ModelType
}

// Engine fetches the feeds, runs the price models and publishes forecasts.
// Concurrent refreshes share one in-flight cycle, and a result computed
// before an already published one is dropped.
type Engine struct {
	mu       sync.Mutex
	weather  ingest.WeatherFetcher
	prices   ingest.PriceFetcher
	cache    cache.FeedCache
	store    *store.Store
	callback Callback
	logger   logrus.FieldLogger

	model    model.ModelType
	seq      uint64
	interval time.Duration
	timeout  time.Duration

	running bool
	stopCh  chan struct{}
	done    chan struct{}

	group singleflight.Group

	now      func() time.Time
	newRunID func() string
}

func New(weather ingest.WeatherFetcher, prices ingest.PriceFetcher, fc cache.FeedCache, s *store.Store, cb Callback, logger logrus.FieldLogger, opts Options) *Engine {
	if fc == nil {
		fc = cache.NoopCache{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Engine{
		weather:  weather,
		prices:   prices,
		cache:    fc,
		store:    s,
		callback: cb,
		logger:   logger,
		model:    model.ParseModelType(string(opts.Model)),
		interval: opts.Interval,
		timeout:  opts.Timeout,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// Model returns the model used for published forecasts.
func (e *Engine) Model() model.ModelType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model
}

// Forecast returns the latest published forecast.
func (e *Engine) Forecast() (model.Forecast, bool) {
	return e.store.Latest()
}

// Running reports whether the refresh loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Refresh fetches both feeds and publishes a new forecast. Callers arriving
// while a refresh is in flight wait for that refresh instead of starting
// another. The returned forecast may already be superseded when a newer one
// was published meanwhile.
func (e *Engine) Refresh(ctx context.Context) (model.Forecast, error) {
	// The shared cycle must not die with whichever caller started it.
	base := context.WithoutCancel(ctx)
	ch := e.group.DoChan(refreshKey, func() (any, error) {
		return e.refresh(base)
	})

	select {
	case <-ctx.Done():
		return model.Forecast{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.Forecast{}, res.Err
		}
		return res.Val.(model.Forecast), nil
	}
}

// SetModel switches the model and republishes the last snapshot under it
// without fetching. Before the first refresh only the model is stored and
// ErrNoData is returned.
func (e *Engine) SetModel(m model.ModelType) (model.Forecast, error) {
	m = model.ParseModelType(string(m))

	e.mu.Lock()
	e.model = m
	snap, ok := e.store.Snapshot()
	var j job
	if ok {
		j = e.claimLocked(snap)
	}
	e.mu.Unlock()

	e.logger.WithField("model", m).Info("model selected")

	if !ok {
		return model.Forecast{}, ErrNoData
	}
	f := e.compute(j)
	e.publish(f)
	return f, nil
}

// Start begins refreshing immediately and then every interval.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})
	stopCh, done := e.stopCh, e.done
	e.mu.Unlock()

	go e.loop(stopCh, done)
}

// Stop ends the refresh loop and waits for it to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	done := e.done
	e.mu.Unlock()

	<-done
}

func (e *Engine) loop(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	e.tick(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	if _, err := e.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.WithError(err).Error("scheduled refresh failed")
	}
}

func (e *Engine) refresh(parent context.Context) (model.Forecast, error) {
	ctx, cancel := context.WithTimeout(parent, e.timeout)
	defer cancel()

	runID := e.newRunID()
	log := e.logger.WithField("run_id", runID)
	started := e.now()

	snap, warnings := e.gather(ctx, runID)

	e.mu.Lock()
	e.store.SetSnapshot(snap)
	j := e.claimLocked(snap)
	e.mu.Unlock()

	for _, w := range warnings {
		e.warn(w)
	}

	f := e.compute(j)
	if !e.publish(f) {
		log.WithField("seq", f.Seq).Debug("forecast superseded, not published")
	}

	log.WithFields(logrus.Fields{
		"seq":            f.Seq,
		"model":          f.Model,
		"points":         len(f.Points),
		"weather_source": snap.WeatherSource,
		"price_source":   snap.PriceSource,
		"elapsed":        e.now().Sub(started).String(),
	}).Info("refresh complete")

	return f, nil
}

// job is one forecast computation: a snapshot, the model to publish and
// the sequence number that orders it against other results.
type job struct {
	seq   uint64
	model model.ModelType
	snap  model.FeedSnapshot
}

// claimLocked takes the next sequence number for snap. The snapshot swap
// and the claim happen under e.mu, so a higher seq never carries an older
// snapshot.
func (e *Engine) claimLocked(snap model.FeedSnapshot) job {
	e.seq++
	return job{seq: e.seq, model: e.model, snap: snap}
}

// compute runs every model over the job's snapshot and builds the forecast
// for the job's model.
func (e *Engine) compute(j job) model.Forecast {
	snap := j.snap
	reports := predictor.CompareModels(snap.Weather, snap.Prices)
	f := model.Forecast{
		Seq:           j.seq,
		RunID:         snap.RunID,
		Model:         j.model,
		GeneratedAt:   e.now().UTC(),
		AllMetrics:    make(map[model.ModelType]model.AggregateMetrics, len(reports)),
		NextHour:      nextHour(snap),
		WeatherSource: snap.WeatherSource,
		PriceSource:   snap.PriceSource,
		Warnings:      snap.Warnings,
	}
	for _, r := range reports {
		f.AllMetrics[r.Model] = r.Metrics
		if r.Model == j.model {
			f.Points = r.Points
			f.Metrics = r.Metrics
			f.Folds = r.Folds
		}
	}
	return f
}

func (e *Engine) publish(f model.Forecast) bool {
	if !e.store.AddForecast(f) {
		return false
	}
	if e.callback != nil {
		e.callback.OnForecast(f)
	}
	return true
}

func (e *Engine) warn(w Warning) {
	e.logger.WithFields(logrus.Fields{
		"run_id": w.RunID,
		"feed":   w.Feed,
	}).Warn(w.Message)
	if e.callback != nil {
		e.callback.OnWarning(w)
	}
}

// nextHour extrapolates from the latest observed price and the latest
// observed temperature.
func nextHour(snap model.FeedSnapshot) *float64 {
	var price, temp *float64
	for i := len(snap.Prices) - 1; i >= 0; i-- {
		if !snap.Prices[i].IsFuture {
			price = &snap.Prices[i].Price
			break
		}
	}
	for i := len(snap.Weather) - 1; i >= 0; i-- {
		if !snap.Weather[i].IsForecast {
			temp = &snap.Weather[i].Temperature
			break
		}
	}
	if price == nil || temp == nil {
		return nil
	}
	v := predictor.PredictHorizon(*price, *temp)
	return &v
}

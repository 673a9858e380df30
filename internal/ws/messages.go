package ws

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"price_forecast/internal/model"
	"price_forecast/internal/pipeline"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client -> Server messages

type SetModelPayload struct {
	Model string `json:"model"`
}

// Server -> Client messages

type PointPayload struct {
	Timestamp      string           `json:"timestamp"`
	ActualPrice    *decimal.Decimal `json:"actual_price,omitempty"`
	PredictedPrice decimal.Decimal  `json:"predicted_price"`
	Temperature    decimal.Decimal  `json:"temperature"`
	IsFuture       bool             `json:"is_future"`
}

type MetricsPayload struct {
	MAE  decimal.Decimal `json:"mae"`
	RMSE decimal.Decimal `json:"rmse"`
	R2   decimal.Decimal `json:"r2"`
}

type FoldPayload struct {
	Fold      int             `json:"fold"`
	TrainSize int             `json:"train_size"`
	TestSize  int             `json:"test_size"`
	MAE       decimal.Decimal `json:"mae"`
	RMSE      decimal.Decimal `json:"rmse"`
}

type ModelMetricsPayload struct {
	Model   string         `json:"model"`
	Metrics MetricsPayload `json:"metrics"`
}

type ForecastPayload struct {
	Seq           uint64                `json:"seq"`
	RunID         string                `json:"run_id"`
	Model         string                `json:"model"`
	GeneratedAt   string                `json:"generated_at"`
	Points        []PointPayload        `json:"points"`
	Metrics       MetricsPayload        `json:"metrics"`
	Folds         []FoldPayload         `json:"folds"`
	AllMetrics    []ModelMetricsPayload `json:"all_metrics"`
	NextHour      *decimal.Decimal      `json:"next_hour,omitempty"`
	WeatherSource string                `json:"weather_source"`
	PriceSource   string                `json:"price_source"`
	Warnings      []string              `json:"warnings,omitempty"`
}

type WarningPayload struct {
	RunID   string `json:"run_id"`
	Feed    string `json:"feed"`
	Message string `json:"message"`
	At      string `json:"at"`
}

type ModelsPayload struct {
	Models  []string `json:"models"`
	Current string   `json:"current"`
}

// Message type constants
const (
	// Client -> Server
	TypeModelSet        = "model:set"
	TypeForecastRefresh = "forecast:refresh"

	// Server -> Client
	TypeForecastUpdate  = "forecast:update"
	TypePipelineWarning = "pipeline:warning"
	TypeModels          = "models:list"
)

const timeLayout = "2006-01-02T15:04:05Z"

func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// price rounds a value to cents for display.
func price(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func MetricsFromModel(m model.AggregateMetrics) MetricsPayload {
	return MetricsPayload{
		MAE:  decimal.NewFromFloat(m.MAE).Round(2),
		RMSE: decimal.NewFromFloat(m.RMSE).Round(2),
		R2:   decimal.NewFromFloat(m.R2).Round(3),
	}
}

func PointFromModel(p model.PricePoint) PointPayload {
	out := PointPayload{
		Timestamp:      p.Timestamp.UTC().Format(timeLayout),
		PredictedPrice: price(p.PredictedPrice),
		Temperature:    decimal.NewFromFloat(p.Temperature).Round(1),
		IsFuture:       p.IsFuture,
	}
	if p.ActualPrice != nil {
		a := price(*p.ActualPrice)
		out.ActualPrice = &a
	}
	return out
}

func ForecastFromModel(f model.Forecast) ForecastPayload {
	out := ForecastPayload{
		Seq:           f.Seq,
		RunID:         f.RunID,
		Model:         string(f.Model),
		GeneratedAt:   f.GeneratedAt.UTC().Format(timeLayout),
		Points:        make([]PointPayload, len(f.Points)),
		Metrics:       MetricsFromModel(f.Metrics),
		Folds:         make([]FoldPayload, len(f.Folds)),
		AllMetrics:    AllMetricsFromModel(f.AllMetrics),
		WeatherSource: string(f.WeatherSource),
		PriceSource:   string(f.PriceSource),
		Warnings:      f.Warnings,
	}
	for i, p := range f.Points {
		out.Points[i] = PointFromModel(p)
	}
	for i, fold := range f.Folds {
		out.Folds[i] = FoldPayload{
			Fold:      fold.Fold,
			TrainSize: fold.TrainSize,
			TestSize:  fold.TestSize,
			MAE:       price(fold.MAE),
			RMSE:      price(fold.RMSE),
		}
	}
	if f.NextHour != nil {
		v := price(*f.NextHour)
		out.NextHour = &v
	}
	return out
}

// AllMetricsFromModel lists per-model metrics in display order.
func AllMetricsFromModel(all map[model.ModelType]model.AggregateMetrics) []ModelMetricsPayload {
	out := make([]ModelMetricsPayload, 0, len(all))
	for _, m := range model.AllModels() {
		if metrics, ok := all[m]; ok {
			out = append(out, ModelMetricsPayload{Model: string(m), Metrics: MetricsFromModel(metrics)})
		}
	}
	// Anything unexpected goes last, sorted by name.
	var extra []ModelMetricsPayload
	for m, metrics := range all {
		if !model.Known(string(m)) {
			extra = append(extra, ModelMetricsPayload{Model: string(m), Metrics: MetricsFromModel(metrics)})
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Model < extra[j].Model })
	return append(out, extra...)
}

func WarningFromPipeline(w pipeline.Warning) WarningPayload {
	return WarningPayload{
		RunID:   w.RunID,
		Feed:    w.Feed,
		Message: w.Message,
		At:      w.At.UTC().Format(time.RFC3339),
	}
}

func ModelsFor(current model.ModelType) ModelsPayload {
	all := model.AllModels()
	names := make([]string, len(all))
	for i, m := range all {
		names[i] = string(m)
	}
	return ModelsPayload{Models: names, Current: string(current)}
}

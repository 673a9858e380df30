package predictor

import "price_forecast/internal/model"

const (
	minCrossValidationPoints = 12
	crossValidationSplits    = 5
	crossValidationFolds     = crossValidationSplits - 1
	minFoldSize              = 2
)

// CrossValidate runs expanding-window validation over the scored historical
// points of a series. Fold i trains on the first i·foldSize points and tests on
// the next foldSize; the last fold also takes any remainder. Test windows never
// overlap and never precede their training data.
func CrossValidate(points []model.PricePoint) []model.FoldResult {
	hist := scored(points)
	total := len(hist)
	folds := make([]model.FoldResult, 0, crossValidationFolds)
	if total < minCrossValidationPoints {
		return folds
	}

	foldSize := total / crossValidationSplits
	if foldSize < minFoldSize {
		return folds
	}

	for i := 1; i <= crossValidationFolds; i++ {
		trainEnd := i * foldSize
		testEnd := min(total, (i+1)*foldSize)
		if i == crossValidationFolds {
			testEnd = total
		}
		test := hist[trainEnd:testEnd]
		if len(test) == 0 {
			continue
		}

		m := sliceMetrics(test)
		folds = append(folds, model.FoldResult{
			Fold:      i,
			TrainSize: trainEnd,
			TestSize:  len(test),
			MAE:       Round2(m.MAE),
			RMSE:      Round2(m.RMSE),
		})
	}
	return folds
}

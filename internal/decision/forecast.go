package decision

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrModelNotTrained = errors.New("sales model is not trained")
	ErrBadShape        = errors.New("feature matrix has inconsistent shape")
)

// Forecaster is an ordinary least squares regressor with an intercept term.
type Forecaster struct {
	mu   sync.RWMutex
	coef []float64 // coef[0] is the intercept
}

func NewForecaster() *Forecaster {
	return &Forecaster{}
}

func (f *Forecaster) Trained() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.coef != nil
}

func (f *Forecaster) Train(features [][]float64, targets []float64) error {
	width, err := featureWidth(features)
	if err != nil {
		return err
	}
	if len(targets) != len(features) {
		return fmt.Errorf("%w: %d rows but %d targets", ErrBadShape, len(features), len(targets))
	}
	if len(features) < width+1 {
		return fmt.Errorf("%w: need at least %d samples for %d features", ErrBadShape, width+1, width)
	}

	design := mat.NewDense(len(features), width+1, nil)
	for i, row := range features {
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}
	y := mat.NewVecDense(len(targets), append([]float64(nil), targets...))

	var beta mat.VecDense
	if err := beta.SolveVec(design, y); err != nil {
		return fmt.Errorf("fit sales model: %w", err)
	}

	coef := make([]float64, width+1)
	for i := range coef {
		coef[i] = beta.AtVec(i)
	}
	f.mu.Lock()
	f.coef = coef
	f.mu.Unlock()
	return nil
}

func (f *Forecaster) Predict(features [][]float64) ([]float64, error) {
	f.mu.RLock()
	coef := f.coef
	f.mu.RUnlock()
	if coef == nil {
		return nil, ErrModelNotTrained
	}
	width, err := featureWidth(features)
	if err != nil {
		return nil, err
	}
	if width != len(coef)-1 {
		return nil, fmt.Errorf("%w: model expects %d features, got %d", ErrBadShape, len(coef)-1, width)
	}

	x := mat.NewDense(len(features), width, nil)
	for i, row := range features {
		x.SetRow(i, row)
	}
	w := mat.NewVecDense(width, append([]float64(nil), coef[1:]...))
	var out mat.VecDense
	out.MulVec(x, w)

	preds := make([]float64, len(features))
	for i := range preds {
		preds[i] = out.AtVec(i) + coef[0]
	}
	return preds, nil
}

func featureWidth(features [][]float64) (int, error) {
	if len(features) == 0 || len(features[0]) == 0 {
		return 0, fmt.Errorf("%w: no features", ErrBadShape)
	}
	width := len(features[0])
	for i, row := range features {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d values, want %d", ErrBadShape, i, len(row), width)
		}
	}
	return width, nil
}

package ml

import "math"

type AdamParams struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

func DefaultAdamParams() AdamParams {
	return AdamParams{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

type Gradient struct {
	Value float64
	M1    float64
	M2    float64
}

type Gradients struct {
	Data []Gradient
	Rows int
	Cols int
}

func (g *Gradient) Calculate(p *AdamParams) float64 {

	if g.Value == 0 {
		// nothing to calculate
		return 0
	}

	g.M1 = g.M1*p.Beta1 + g.Value*(1-p.Beta1)
	g.M2 = g.M2*p.Beta2 + (g.Value*g.Value)*(1-p.Beta2)

	return p.LearningRate * g.M1 / (math.Sqrt(g.M2) + p.Epsilon)
}

func NewGradients(rows, cols int) Gradients {
	return Gradients{
		Data: make([]Gradient, cols*rows),
		Rows: rows,
		Cols: cols,
	}
}

func (g *Gradients) Add(row, col int, delta float64) {
	g.Data[col*g.Rows+row].Value += delta
}

func (g *Gradients) Reset() {
	for i := range g.Data {
		g.Data[i].Value = 0
	}
}

func (g *Gradients) Apply(m *Matrix, p *AdamParams) {
	for i := range g.Data {
		m.Data[i] -= g.Data[i].Calculate(p)
		g.Data[i].Value = 0
	}
}

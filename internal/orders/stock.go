package orders

import "fmt"

type StockLevel string

const (
	StockOut    StockLevel = "out"
	StockLow    StockLevel = "low"
	StockMedium StockLevel = "medium"
	StockGood   StockLevel = "good"
)

// StockPolicy holds the classification thresholds: 0 is out, (0, LowMax] low,
// (LowMax, MediumMax] medium, above MediumMax good.
type StockPolicy struct {
	LowMax    int
	MediumMax int
}

var DefaultStockPolicy = StockPolicy{LowMax: 5, MediumMax: 15}

func (p StockPolicy) Validate() error {
	if p.LowMax <= 0 || p.MediumMax <= p.LowMax {
		return fmt.Errorf("invalid stock policy: low=%d medium=%d", p.LowMax, p.MediumMax)
	}
	return nil
}

func (p StockPolicy) Classify(stock int) StockLevel {
	switch {
	case stock <= 0:
		return StockOut
	case stock <= p.LowMax:
		return StockLow
	case stock <= p.MediumMax:
		return StockMedium
	default:
		return StockGood
	}
}

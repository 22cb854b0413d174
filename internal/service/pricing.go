package service

import "github.com/shopspring/decimal"

// ComputeTotals считает стоимость каждой строки и общую сумму по ценам из снимка
func ComputeTotals(lines []SnapshotLine) (decimal.Decimal, []decimal.Decimal) {
	grandTotal := decimal.Zero
	perLine := make([]decimal.Decimal, len(lines))
	for i, line := range lines {
		perLine[i] = line.Product.Price.Mul(decimal.NewFromInt(int64(line.Item.Quantity)))
		grandTotal = grandTotal.Add(perLine[i])
	}
	return grandTotal, perLine
}

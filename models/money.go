package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Money is an exact currency amount used for running aggregate totals.
// It is stored as BSON decimal128 so repeated $inc updates stay exact.
type Money struct {
	d decimal.Decimal
}

// NewMoney converts a float amount, rounded to cents.
func NewMoney(amount float64) Money {
	return Money{d: decimal.NewFromFloat(amount).Round(2)}
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }
func (m Money) IsZero() bool      { return m.d.IsZero() }
func (m Money) String() string    { return m.d.String() }

func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// Decimal128 is the value written to MongoDB, including in $inc updates.
func (m Money) Decimal128() primitive.Decimal128 {
	d, err := primitive.ParseDecimal128(m.d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return d
}

func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(m.Decimal128())
}

// UnmarshalBSONValue also accepts numeric types written before totals
// were stored as decimal128.
func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeDecimal128:
		d, err := decimal.NewFromString(raw.Decimal128().String())
		if err != nil {
			return fmt.Errorf("decode money: %w", err)
		}
		m.d = d
	case bson.TypeDouble:
		m.d = decimal.NewFromFloat(raw.Double()).Round(2)
	case bson.TypeInt32:
		m.d = decimal.NewFromInt(int64(raw.Int32()))
	case bson.TypeInt64:
		m.d = decimal.NewFromInt(raw.Int64())
	case bson.TypeNull, bson.TypeUndefined:
		m.d = decimal.Zero
	default:
		return fmt.Errorf("decode money: unsupported bson type %s", t)
	}
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	return m.d.UnmarshalJSON(b)
}

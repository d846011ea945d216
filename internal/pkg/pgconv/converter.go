package pgconv

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

var ErrInvalidNumericValue = errors.New("invalid numeric value in pgtype.Numeric")

func DecimalFromPgtype(pn pgtype.Numeric) (decimal.Decimal, error) {
	if !pn.Valid {
		return decimal.Zero, nil
	}
	if pn.NaN || pn.InfinityModifier != pgtype.Finite {
		return decimal.Zero, ErrInvalidNumericValue
	}
	return decimal.NewFromBigInt(pn.Int, pn.Exp), nil
}

func DecimalToPgtype(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func TextToPgtype(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func StringFromPgtype(pt pgtype.Text) string {
	if !pt.Valid {
		return ""
	}
	return pt.String
}

func TimeToPgtype(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

func TimeFromPgtype(pt pgtype.Timestamptz) time.Time {
	if !pt.Valid {
		return time.Time{}
	}
	return pt.Time.UTC()
}

func Int32sToInts(in []int32) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

func IntsToInt32s(in []int) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		// #nosec G115 -- cell indices are bounded by the grid size
		out[i] = int32(v)
	}
	return out
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

const pgErrCodeUniqueViolation = "23505"

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrCodeUniqueViolation
}

package repository

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"showroom/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	fieldSeparator = ","

	// TimestampLayout is the sales file timestamp format (yyyy-MM-dd HH:mm:ss)
	TimestampLayout = "2006-01-02 15:04:05"

	entryFields = 5
	saleFields  = 4
)

var errFieldCount = errors.New("wrong field count")

// formatPrice writes prices with two decimals unless that would lose precision
func formatPrice(d decimal.Decimal) string {
	if d.Exponent() >= -2 {
		return d.StringFixed(2)
	}
	return d.String()
}

func formatEntryLine(e domain.Entry) string {
	return strings.Join([]string{
		e.Brand,
		e.Model,
		formatPrice(e.Price),
		strconv.Itoa(e.Quantity),
		e.ImagePath,
	}, fieldSeparator)
}

// parseEntryLine splits into at most five fields; the image path is the
// remainder of the line and may itself contain the separator.
func parseEntryLine(line string) (domain.Entry, error) {
	parts := strings.SplitN(line, fieldSeparator, entryFields)
	if len(parts) < entryFields {
		return domain.Entry{}, fmt.Errorf("%w: got %d, want %d", errFieldCount, len(parts), entryFields)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
	if err != nil {
		return domain.Entry{}, fmt.Errorf("invalid price %q: %w", parts[2], err)
	}
	quantity, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return domain.Entry{}, fmt.Errorf("invalid quantity %q: %w", parts[3], err)
	}

	return domain.Entry{
		Brand:     strings.TrimSpace(parts[0]),
		Model:     strings.TrimSpace(parts[1]),
		Price:     price,
		Quantity:  quantity,
		ImagePath: strings.TrimSpace(parts[4]),
	}, nil
}

func formatSaleLine(s domain.Sale) string {
	return strings.Join([]string{
		s.Timestamp.Format(TimestampLayout),
		s.Brand,
		s.Model,
		formatPrice(s.Price),
	}, fieldSeparator)
}

func parseSaleLine(line string, loc *time.Location) (domain.Sale, error) {
	parts := strings.SplitN(line, fieldSeparator, saleFields)
	if len(parts) < saleFields {
		return domain.Sale{}, fmt.Errorf("%w: got %d, want %d", errFieldCount, len(parts), saleFields)
	}

	ts, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(parts[0]), loc)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("invalid timestamp %q: %w", parts[0], err)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(parts[3]))
	if err != nil {
		return domain.Sale{}, fmt.Errorf("invalid price %q: %w", parts[3], err)
	}

	return domain.Sale{
		Timestamp: ts,
		Brand:     strings.TrimSpace(parts[1]),
		Model:     strings.TrimSpace(parts[2]),
		Price:     price,
	}, nil
}

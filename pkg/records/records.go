package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
)

// Column names expected in the listings CSV header.
const (
	ColumnID         = "Property ID"
	ColumnLocation   = "Location"
	ColumnBHK        = "BHK"
	ColumnPrice      = "Start Price"
	ColumnFurnishing = "Furnishing"
	ColumnAmenities  = "Amenities"
	ColumnNearby     = "Nearby"
	ColumnStatus     = "Status"
)

var requiredColumns = []string{ColumnID, ColumnLocation, ColumnBHK, ColumnPrice}

var digits = regexp.MustCompile(`\d+`)

// Load reads listings from a CSV file. See Read.
func Load(path string, logger *log.Logger) ([]models.Property, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	defer f.Close()
	return Read(f, logger)
}

// Read parses listings. Sold listings are dropped; rows that fail to parse
// are logged and skipped.
func Read(r io.Reader, logger *log.Logger) ([]models.Property, error) {
	if logger == nil {
		logger = log.Default()
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var properties []models.Property
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		field := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		if field(ColumnStatus) == "Sold" {
			continue
		}

		p, err := parseRow(field)
		if err != nil {
			logger.Printf("records: skipping row %d: %v", line, err)
			continue
		}
		properties = append(properties, p)
	}

	return properties, nil
}

func parseRow(field func(string) string) (models.Property, error) {
	price, err := NormalizePrice(field(ColumnPrice))
	if err != nil {
		return models.Property{}, fmt.Errorf("%w: %v", types.ErrMalformedRecord, err)
	}
	bhk, err := ParseBHK(field(ColumnBHK))
	if err != nil {
		return models.Property{}, fmt.Errorf("%w: %v", types.ErrMalformedRecord, err)
	}

	p := models.Property{
		ID:         field(ColumnID),
		Location:   field(ColumnLocation),
		BHK:        bhk,
		Price:      price,
		Furnishing: field(ColumnFurnishing),
		Amenities:  ParseList(field(ColumnAmenities)),
		Nearby:     ParseList(field(ColumnNearby)),
	}
	if err := Validate(p); err != nil {
		return models.Property{}, err
	}
	return p, nil
}

// NormalizePrice accepts plain numbers, Indian comma grouping
// ("92,50,000"), crore ("1.2 Cr") and lakh ("80L") notation.
func NormalizePrice(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "₹", ""))

	if strings.Contains(s, ",") {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			return v, nil
		}
	}
	if strings.Contains(s, "Cr") {
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(s, "Cr", "")), 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse price: %q", s)
		}
		return v * 10000000, nil
	}
	if strings.Contains(s, "L") {
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(s, "L", "")), 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse price: %q", s)
		}
		return v * 100000, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse price: %q", s)
	}
	return v, nil
}

// ParseBHK extracts the first number from values like "3 BHK".
func ParseBHK(s string) (float64, error) {
	m := digits.FindString(s)
	if m == "" {
		return 0, fmt.Errorf("could not parse BHK: %q", s)
	}
	return strconv.ParseFloat(m, 64)
}

// ParseList splits a comma separated cell, dropping blanks.
func ParseList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate reports a missing required field as ErrMalformedRecord.
func Validate(p models.Property) error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("%w: missing property id", types.ErrMalformedRecord)
	case strings.TrimSpace(p.Location) == "":
		return fmt.Errorf("%w: property %s missing location", types.ErrMalformedRecord, p.ID)
	}
	return nil
}

// Render produces the canonical text embedded for a listing. The field
// order is part of the index contract: changing it changes retrieval.
func Render(p models.Property) (string, error) {
	if err := Validate(p); err != nil {
		return "", err
	}
	return fmt.Sprintf("Property ID: %s\nLocation: %s\nBHK: %s\nPrice: %s\nAmenities: %s\nNearby: %s",
		p.ID,
		p.Location,
		FormatNumber(p.BHK),
		FormatNumber(p.Price),
		strings.Join(p.Amenities, ", "),
		strings.Join(p.Nearby, ", "),
	), nil
}

// FormatNumber prints the shortest exact decimal form ("2", "5000000", "2.5").
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

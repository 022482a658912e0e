package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/discount"
)

// rule is the discount definition applied to an ingested code.
type rule struct {
	typ         discount.Type
	value       decimal.Decimal
	minOrder    decimal.Decimal
	maxDiscount decimal.Decimal
	description string
	// validFor overrides the run-wide validity window when positive.
	validFor time.Duration
}

// parseLine splits an input line of the form
// "code[,type,value[,min[,max[,days]]]]". The rule is nil for bare codes.
func parseLine(line string) (string, *rule, error) {
	fields := strings.Split(line, ",")
	code := discount.NormalizeCode(fields[0])
	if len(fields) == 1 {
		return code, nil, nil
	}
	if len(fields) < 3 || len(fields) > 6 {
		return code, nil, errors.Errorf("expected 3 to 6 fields, got %d", len(fields))
	}

	r := &rule{typ: discount.Type(strings.ToLower(strings.TrimSpace(fields[1])))}
	if !r.typ.Valid() {
		return code, nil, errors.Errorf("unknown discount type %q", fields[1])
	}
	var err error
	if r.value, err = decimal.NewFromString(strings.TrimSpace(fields[2])); err != nil {
		return code, nil, errors.Wrap(err, "value")
	}
	for i, dst := range []*decimal.Decimal{&r.minOrder, &r.maxDiscount} {
		f := 3 + i
		if f >= len(fields) || strings.TrimSpace(fields[f]) == "" {
			continue
		}
		if *dst, err = decimal.NewFromString(strings.TrimSpace(fields[f])); err != nil {
			return code, nil, errors.Wrapf(err, "field %d", f+1)
		}
	}
	if len(fields) == 6 && strings.TrimSpace(fields[5]) != "" {
		days, err := strconv.Atoi(strings.TrimSpace(fields[5]))
		if err != nil || days < 0 {
			return code, nil, errors.Errorf("invalid days %q", fields[5])
		}
		r.validFor = time.Duration(days) * 24 * time.Hour
	}
	r.description = "Partner code: " + r.value.String() + " " + string(r.typ) + " off"
	return code, r, nil
}

// knownRules overrides the default rule for campaign codes with a fixed meaning.
var knownRules = map[string]rule{
	"WELCOME10": {typ: discount.TypePercentage, value: decimal.NewFromInt(10), description: "Welcome offer: 10% off"},
	"FESTIVE25": {
		typ: discount.TypePercentage, value: decimal.NewFromInt(25),
		minOrder: decimal.NewFromInt(1000), maxDiscount: decimal.NewFromInt(500),
		description: "Festive sale: 25% off, up to 500 per item",
	},
	"FLAT100": {
		typ: discount.TypeFixed, value: decimal.NewFromInt(100),
		minOrder: decimal.NewFromInt(999), description: "100 off each item on orders over 999",
	},
	"FREESHIP": {typ: discount.TypeFixed, value: decimal.NewFromInt(50), description: "50 off each item"},
}

// build turns accepted codes into discounts valid from now for validFor
// (zero means open-ended). Rules read from the input win over knownRules,
// which win over def.
func build(codes []accepted, def rule, now time.Time, validFor time.Duration) ([]discount.Discount, error) {
	out := make([]discount.Discount, 0, len(codes))
	for _, a := range codes {
		code := a.code
		var r rule
		switch known, ok := knownRules[code]; {
		case a.rule != nil:
			r = *a.rule
		case ok:
			r = known
		default:
			r = def
		}
		window := validFor
		if r.validFor > 0 {
			window = r.validFor
		}
		var end *time.Time
		if window > 0 {
			t := now.Add(window)
			end = &t
		}
		d := discount.Discount{
			ID:                uuid.NewString(),
			Code:              code,
			Description:       r.description,
			Type:              r.typ,
			Value:             r.value,
			MinOrderValue:     decimal.NewNullDecimal(r.minOrder),
			MaxDiscountAmount: decimal.NewNullDecimal(r.maxDiscount),
			StartDate:         now,
			EndDate:           end,
			IsActive:          true,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		d.Normalize()
		if err := d.Validate(); err != nil {
			return nil, errors.Wrapf(err, "code %s", code)
		}
		out = append(out, d)
	}
	return out, nil
}

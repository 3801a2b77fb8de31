package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ppiankov/poldna/internal/model"
)

// DecodeCategorization validates raw model output against the categorization
// contract: a single JSON object with a known category and a finite weight in
// [-1,1]. Any deviation yields ErrInvalidCategorization.
func DecodeCategorization(raw string) (model.Categorization, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return model.Categorization{}, fmt.Errorf("%w: empty response", ErrInvalidCategorization)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	var p categorizationPayload
	if err := dec.Decode(&p); err != nil {
		return model.Categorization{}, fmt.Errorf("%w: %v", ErrInvalidCategorization, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return model.Categorization{}, fmt.Errorf("%w: trailing content after JSON object", ErrInvalidCategorization)
	}

	if p.Category == nil {
		return model.Categorization{}, fmt.Errorf("%w: missing category", ErrInvalidCategorization)
	}
	category, ok := model.ParseCategory(*p.Category)
	if !ok {
		return model.Categorization{}, fmt.Errorf("%w: unknown category %q", ErrInvalidCategorization, *p.Category)
	}

	if p.Weight == nil {
		return model.Categorization{}, fmt.Errorf("%w: missing weight", ErrInvalidCategorization)
	}
	w := *p.Weight
	if !finite(w) || w < -1 || w > 1 {
		return model.Categorization{}, fmt.Errorf("%w: weight %v outside [-1,1]", ErrInvalidCategorization, w)
	}
	if category == model.CategoryOther {
		w = 0
	}

	return model.Categorization{Category: category, Weight: w, Source: "llm"}, nil
}

// Package contract holds reusable checks that every registry provider must pass.
package contract

import (
	"context"
	"testing"

	"github.com/tidwall/gjson"

	"diligence/internal/evidence/registry/providers"
	"diligence/pkg/domain"
)

// ContractTest defines a successful lookup and what its payload must look like.
type ContractTest struct {
	Name         string
	Provider     providers.Provider
	TaxID        domain.TaxID
	ExpectItems  int
	ValidateFunc func(payload gjson.Result) error
}

// ContractSuite is a collection of contract tests for one registry
type ContractSuite struct {
	Source providers.Source
	Tests  []ContractTest
}

// Run executes all contract tests in the suite
func (s *ContractSuite) Run(t *testing.T) {
	for _, test := range s.Tests {
		t.Run(test.Name, func(t *testing.T) {
			if test.Provider.Source() != s.Source {
				t.Fatalf("expected source %s, got %s", s.Source, test.Provider.Source())
			}

			payload, err := test.Provider.Lookup(context.Background(), test.TaxID)
			if err != nil {
				t.Fatalf("provider lookup failed: %v", err)
			}

			parsed := gjson.ParseBytes(payload)
			if !parsed.IsArray() {
				t.Fatalf("payload is not a JSON array: %s", payload)
			}
			if got := len(parsed.Array()); got != test.ExpectItems {
				t.Errorf("expected %d items, got %d", test.ExpectItems, got)
			}

			if test.ValidateFunc != nil {
				if err := test.ValidateFunc(parsed); err != nil {
					t.Errorf("custom validation failed: %v", err)
				}
			}
		})
	}
}

// ErrorContractTest validates that a failing lookup follows the taxonomy and
// still yields an empty array.
type ErrorContractTest struct {
	Name          string
	Provider      providers.Provider
	TaxID         domain.TaxID
	ExpectedError providers.ErrorCategory
}

// Run executes an error contract test
func (ect *ErrorContractTest) Run(t *testing.T) {
	payload, err := ect.Provider.Lookup(context.Background(), ect.TaxID)
	if err == nil {
		t.Fatal("expected error but got none")
	}

	if category := providers.GetCategory(err); category != ect.ExpectedError {
		t.Errorf("expected error category %s, got %s", ect.ExpectedError, category)
	}

	if string(payload) != string(providers.EmptyPayload) {
		t.Errorf("expected empty payload on failure, got %s", payload)
	}
}

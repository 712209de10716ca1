package catalog_test

import (
	"testing"

	"github.com/contessasoft/nyati/internal/bot/catalog"
)

func TestAllSetsValidate(t *testing.T) {
	for _, set := range catalog.All {
		if err := set.Validate(); err != nil {
			t.Errorf("set %q: %v", set.Name, err)
		}
	}
}

func TestQuickReplySetsFitButtonLimit(t *testing.T) {
	for _, set := range catalog.QuickReplySets {
		if len(set.Options) > catalog.MaxQuickReplyOptions {
			t.Errorf("set %q has %d options, quick-reply limit is %d",
				set.Name, len(set.Options), catalog.MaxQuickReplyOptions)
		}
	}
}

func TestOptionIDsUniqueAcrossCatalog(t *testing.T) {
	seen := make(map[string]string)
	for _, set := range catalog.All {
		for _, opt := range set.Options {
			if other, dup := seen[opt.ID]; dup {
				t.Errorf("option id %q appears in both %q and %q", opt.ID, other, set.Name)
			}
			seen[opt.ID] = set.Name
		}
	}
}

func TestByID(t *testing.T) {
	opt, ok := catalog.MainMenu.ByID(catalog.MainQuote)
	if !ok {
		t.Fatalf("expected %q in the main menu", catalog.MainQuote)
	}
	if opt.Label != "Request a Quote" {
		t.Fatalf("unexpected label %q", opt.Label)
	}
	if _, ok := catalog.MainMenu.ByID("nope"); ok {
		t.Fatal("expected miss for unknown option id")
	}
}

func TestFormFieldOrder(t *testing.T) {
	if got := catalog.QuoteForm.First().Key; got != "name" {
		t.Fatalf("quote form starts with %q, want name", got)
	}
	next, ok := catalog.QuoteForm.NextField("contact")
	if !ok || next.Key != "service" {
		t.Fatalf("after contact got (%q, %v), want (service, true)", next.Key, ok)
	}
	if _, ok := catalog.QuoteForm.NextField("description"); ok {
		t.Fatal("description is the last field, NextField must report completion")
	}
}

func TestEveryDescribedServiceHasCopy(t *testing.T) {
	for _, opt := range catalog.ServicesMenu.Options {
		if opt.ID == catalog.ServiceChatbot || opt.ID == catalog.ServiceOther {
			continue // drill-down and free-text paths carry no detail copy
		}
		if _, ok := catalog.ServiceDescriptions[opt.ID]; !ok {
			t.Errorf("service %q has no description", opt.ID)
		}
	}
}

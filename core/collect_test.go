package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func collectResultFixture() CollectionResult {
	id := "1"
	return CollectionResult{
		RunID: "run_1",
		Items: []IntegrationItem{{ID: &id, Type: "contact"}},
		Collections: []CollectionStatus{
			{Collection: "contacts", Status: CollectionStatusSucceeded, Pages: 1, Fetched: 1, Normalized: 1},
			{Collection: "deals", Status: CollectionStatusFailed, Pages: 1, Error: "status 500"},
			{Collection: "widgets", Status: CollectionStatusSkipped},
		},
		StartedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}
}

func TestCollectItems_RecordsRunAndAnnotatesAccount(t *testing.T) {
	collector := &stubCollector{result: collectResultFixture()}
	runs := &memoryRunStore{}
	svc, metrics, _ := newObservedService(t,
		WithItemCollector(collector),
		WithCollectionRunStore(runs),
		WithTokenInspector(stubInspector{account: AccountInfo{HubID: 42, HubDomain: "acme.hubspot.com"}}),
	)

	result, err := svc.CollectItems(context.Background(), Credential{AccessToken: "at_1", OrgID: "org_1", UserID: "usr_1"})
	if err != nil {
		t.Fatalf("collect items: %v", err)
	}
	if collector.calls != 1 || collector.cred.AccessToken != "at_1" {
		t.Fatalf("expected collector to receive credential")
	}
	if result.Account == nil || result.Account.HubID != 42 {
		t.Fatalf("expected account annotation, got %+v", result.Account)
	}
	if len(runs.runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(runs.runs))
	}
	run := runs.runs[0]
	if run.Status != CollectionRunPartial {
		t.Fatalf("expected partial run status, got %q", run.Status)
	}
	if run.OrgID != "org_1" || run.ItemCount != 1 || len(run.Collections) != 3 {
		t.Fatalf("unexpected run %+v", run)
	}
	if !hasCounter(metrics.counters, "crmitems.collect_items.total", "success") {
		t.Fatalf("expected collect success counter")
	}
	if !hasCounter(metrics.counters, "crmitems.collection.total", "failed") {
		t.Fatalf("expected failed collection counter")
	}
}

func TestCollectItems_AuxiliaryFailuresAreNotFatal(t *testing.T) {
	collector := &stubCollector{result: collectResultFixture()}
	svc, _, logger := newObservedService(t,
		WithItemCollector(collector),
		WithCollectionRunStore(&memoryRunStore{err: errors.New("db down")}),
		WithTokenInspector(stubInspector{err: errors.New("token info unavailable")}),
	)

	result, err := svc.CollectItems(context.Background(), Credential{AccessToken: "at_1"})
	if err != nil {
		t.Fatalf("expected collection to succeed, got %v", err)
	}
	if result.Account != nil {
		t.Fatalf("expected no account annotation")
	}
	warned := 0
	for _, record := range logger.snapshot() {
		if record.level == "warn" {
			warned++
		}
	}
	if warned < 2 {
		t.Fatalf("expected warn logs for inspector and run store failures, got %d", warned)
	}
}

func TestCollectItems_InspectionWarningMasksAccessToken(t *testing.T) {
	const token = "SECRET-ACCESS-TOKEN"
	collector := &stubCollector{result: collectResultFixture()}
	svc, _, logger := newObservedService(t,
		WithItemCollector(collector),
		WithTokenInspector(stubInspector{
			err: fmt.Errorf(`Get "https://api.hubapi.com/oauth/v1/access-tokens/%s": dial tcp: connection refused`, token),
		}),
	)

	if _, err := svc.CollectItems(context.Background(), Credential{AccessToken: token}); err != nil {
		t.Fatalf("collect items: %v", err)
	}
	warned := false
	for _, record := range logger.snapshot() {
		for key, value := range record.fields {
			if strings.Contains(fmt.Sprint(value), token) {
				t.Fatalf("access token leaked into %q log field %q: %v", record.msg, key, value)
			}
		}
		if record.msg == "token inspection failed" {
			warned = true
			if !strings.Contains(fmt.Sprint(record.fields["error"]), RedactedValue) {
				t.Fatalf("expected masked error field, got %v", record.fields["error"])
			}
		}
	}
	if !warned {
		t.Fatalf("expected token inspection warning")
	}
}

func TestCollectItems_RequiresAccessToken(t *testing.T) {
	collector := &stubCollector{}
	svc, _, _ := newObservedService(t, WithItemCollector(collector))

	_, err := svc.CollectItems(context.Background(), Credential{})
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected no credential error, got %v", err)
	}
	if collector.calls != 0 {
		t.Fatalf("expected collector not to run")
	}
}

func TestRunFromResultStatus(t *testing.T) {
	result := collectResultFixture()
	result.Collections = result.Collections[:1]
	if got := RunFromResult(result, Credential{}).Status; got != CollectionRunSucceeded {
		t.Fatalf("expected succeeded, got %q", got)
	}
	result.Collections = []CollectionStatus{
		{Collection: "deals", Status: CollectionStatusFailed},
		{Collection: "widgets", Status: CollectionStatusSkipped},
	}
	if got := RunFromResult(result, Credential{}).Status; got != CollectionRunFailed {
		t.Fatalf("expected failed, got %q", got)
	}
}

func TestListCollectionRuns_NormalizesFilter(t *testing.T) {
	runs := &memoryRunStore{runs: []CollectionRun{{ID: "run_1", OrgID: "org_1"}, {ID: "run_2", OrgID: "org_2"}}}
	svc, _, _ := newObservedService(t, WithCollectionRunStore(runs))

	page, err := svc.ListCollectionRuns(context.Background(), CollectionRunFilter{OrgID: " org_1 ", PerPage: 1000})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "run_1" {
		t.Fatalf("unexpected runs %+v", page.Items)
	}
	if page.Page != 1 || page.PerPage != 200 {
		t.Fatalf("expected normalized paging, got page=%d per_page=%d", page.Page, page.PerPage)
	}
}

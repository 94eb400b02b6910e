package manager

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"ledgerline/policyforge/pkg/answers"
	"ledgerline/policyforge/pkg/enhance"
	"ledgerline/policyforge/pkg/policy"
	"ledgerline/policyforge/pkg/policy/source"
	"ledgerline/policyforge/pkg/rulebook/ast"
	"ledgerline/policyforge/pkg/storage"
	"ledgerline/policyforge/pkg/versioning"
)

var clock = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func amlTemplate() *ast.Template {
	return &ast.Template{
		Code:    "aml",
		Name:    "Anti-money laundering",
		Version: "1.0.0",
		Clauses: []*ast.Clause{
			{Code: "purpose", Title: "Purpose", DisplayOrder: 10, Mandatory: true, Body: "This policy applies to {{ firm_name }}."},
			{Code: "edd_domestic_pep", Title: "Domestic PEPs", DisplayOrder: 20, Body: "Apply EDD with a {{ review_months }} month review."},
			{Code: "enhanced_monitoring", Title: "Monitoring", DisplayOrder: 30, Body: "Monitor high-risk customers."},
		},
		Rules: []*ast.Rule{
			{
				ID: "pep", Priority: 100, Enabled: true,
				Condition: ast.Leaf("pep_domestic", ast.OperatorEquals, true),
				Actions: []*ast.Action{
					{Type: ast.ActionInclude, Clauses: []string{"edd_domestic_pep"}},
					{Type: ast.ActionSetVariable, Variable: "review_months", From: "review_months", Default: valuePtr(answers.Int(12))},
				},
			},
			{
				ID: "risk", Priority: 50, Enabled: true,
				Condition: ast.Leaf("risk_score", ast.OperatorGreaterThan, 70),
				Actions:   []*ast.Action{{Type: ast.ActionSuggest, Clauses: []string{"enhanced_monitoring"}, Reason: "High risk score"}},
			},
		},
	}
}

func valuePtr(v answers.Value) *answers.Value { return &v }

func mustAnswers(t *testing.T, js string) answers.Set {
	t.Helper()
	set, err := answers.ParseJSON([]byte(js))
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	return set
}

func newManager(t *testing.T, templates ...*ast.Template) (*Manager, *source.MemorySource, *storage.MemoryStore) {
	t.Helper()
	src := source.NewMemorySource(templates...)
	store := storage.NewMemoryStore()
	m := New(src, store, nil, nil).WithClock(func() time.Time { return clock })
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return m, src, store
}

func TestLoad_RegistersTemplates(t *testing.T) {
	m, _, _ := newManager(t, amlTemplate())

	if got := m.Registry().Codes(); !reflect.DeepEqual(got, []string{"aml"}) {
		t.Errorf("Codes() = %v", got)
	}
	st := m.Status()
	if st.Templates != 1 || st.LastError != "" || st.Version == "" || !st.LastLoad.Equal(clock) {
		t.Errorf("Status() = %+v", st)
	}
	if _, err := m.Template("missing"); !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("Template(missing) error = %v, want ErrUnknownTemplate", err)
	}
}

func TestLoad_RejectsBrokenCatalogAndKeepsPrevious(t *testing.T) {
	m, src, _ := newManager(t, amlTemplate())
	before := m.Registry().Version()

	broken := amlTemplate()
	broken.Code = "complaints"
	broken.Rules[0].Actions[0].Clauses = []string{"edd_domestic_pepp"}
	src.SetTemplates(amlTemplate(), broken)

	err := m.Load(context.Background())
	var cerr *CatalogError
	if !errors.As(err, &cerr) {
		t.Fatalf("Load() error = %v, want *CatalogError", err)
	}
	if _, ok := cerr.Problems["complaints"]; !ok {
		t.Errorf("Problems = %v, want entry for complaints", cerr.Problems)
	}
	if m.Registry().Version() != before || m.Registry().Count() != 1 {
		t.Error("rejected load replaced the catalog")
	}
	if st := m.Status(); st.LastError == "" {
		t.Error("Status() does not report the failed load")
	}

	// Duplicate codes are rejected too.
	src.SetTemplates(amlTemplate(), amlTemplate())
	err = m.Load(context.Background())
	if !errors.As(err, &cerr) || !reflect.DeepEqual(cerr.Duplicates, []string{"aml"}) {
		t.Errorf("Load(duplicates) error = %v", err)
	}
}

func TestLoad_StrictTurnsWarningsIntoErrors(t *testing.T) {
	tmpl := amlTemplate()
	tmpl.Rules[1].Condition = ast.Leaf("risk_score", ast.Operator("roughly"), 70)

	m, _, _ := newManager(t, tmpl)
	if m.Registry().Count() != 1 {
		t.Fatal("lenient load should accept a warning")
	}

	cfg := DefaultConfig()
	cfg.Strict = true
	strict := New(source.NewMemorySource(tmpl), storage.NewMemoryStore(), cfg, nil)
	if err := strict.Load(context.Background()); err == nil {
		t.Error("strict Load() accepted a malformed condition")
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	m, src, _ := newManager(t, amlTemplate())
	<-m.Reloads()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	next := amlTemplate()
	next.Version = "1.1.0"
	deadline := time.After(3 * time.Second)
	for {
		src.SetTemplates(next)
		select {
		case ev := <-m.Reloads():
			if ev.Error != nil || ev.Trigger != "watch" {
				t.Fatalf("reload event = %+v", ev)
			}
		case <-time.After(50 * time.Millisecond):
			continue
		case <-deadline:
			t.Fatal("no reload after source change")
		}
		break
	}
	if tmpl, _ := m.Template("aml"); tmpl.Version != "1.1.0" {
		t.Errorf("template version = %q after reload", tmpl.Version)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func TestPreview(t *testing.T) {
	m, _, store := newManager(t, amlTemplate())

	p, err := m.Preview(context.Background(), "aml", mustAnswers(t, `{"pep_domestic": true, "risk_score": 85, "firm_name": "Acme Ltd"}`))
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if got := p.Result.Codes(); !reflect.DeepEqual(got, []string{"purpose", "edd_domestic_pep"}) {
		t.Errorf("clause codes = %v", got)
	}
	c, _ := p.Result.Clause("edd_domestic_pep")
	if c.Body != "Apply EDD with a 12 month review." {
		t.Errorf("edd body = %q", c.Body)
	}
	if len(p.Result.Suggestions) != 1 || p.Result.Suggestions[0].Code != "enhanced_monitoring" {
		t.Errorf("suggestions = %+v", p.Result.Suggestions)
	}
	if list, _ := store.ListPolicies(context.Background(), storage.PolicyFilter{}); len(list) != 0 {
		t.Error("Preview() stored a policy")
	}
}

func TestCreatePolicy(t *testing.T) {
	m, _, store := newManager(t, amlTemplate())
	ctx := context.Background()

	p, err := m.CreatePolicy(ctx, CreateRequest{
		OrganizationID: "org-1",
		TemplateCode:   "aml",
		Name:           "AML policy",
		Answers:        mustAnswers(t, `{"pep_domestic": true, "firm_name": "Acme Ltd"}`),
		CustomContent:  map[string]string{"mlro": "J. Smith"},
	})
	if err != nil {
		t.Fatalf("CreatePolicy() error = %v", err)
	}
	if p.Status != policy.StatusDraft || p.TemplateVersion != "1.0.0" || p.Revision != 1 {
		t.Errorf("policy = %+v", p)
	}
	if !reflect.DeepEqual(p.ClauseCodes(), []string{"purpose", "edd_domestic_pep"}) {
		t.Errorf("ClauseCodes() = %v", p.ClauseCodes())
	}
	if p.Clauses[0].Body != "This policy applies to Acme Ltd." {
		t.Errorf("purpose body = %q", p.Clauses[0].Body)
	}
	if p.Enhancement != nil {
		t.Error("enhancement requested without a queue")
	}

	stored, err := store.GetPolicy(ctx, p.ID)
	if err != nil || stored.CustomContent["mlro"] != "J. Smith" {
		t.Errorf("stored policy = %+v, %v", stored, err)
	}
}

func TestCreatePolicy_Errors(t *testing.T) {
	m, _, _ := newManager(t, amlTemplate())
	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"missing org", CreateRequest{TemplateCode: "aml", Name: "x"}, ErrInvalidRequest},
		{"missing name", CreateRequest{OrganizationID: "o", TemplateCode: "aml"}, ErrInvalidRequest},
		{"unknown template", CreateRequest{OrganizationID: "o", TemplateCode: "nope", Name: "x"}, ErrUnknownTemplate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.CreatePolicy(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("CreatePolicy() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreatePolicy_QueuesEnhancement(t *testing.T) {
	m, _, store := newManager(t, amlTemplate())
	m.WithEnhancement(enhance.NewQueue(store, nil))
	ctx := context.Background()

	p, err := m.CreatePolicy(ctx, CreateRequest{OrganizationID: "org-1", TemplateCode: "aml", Name: "AML"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Enhancement == nil || p.Enhancement.Status != policy.EnhancementPending {
		t.Fatalf("Enhancement = %+v, want pending", p.Enhancement)
	}
	jobs, _ := store.ListJobs(ctx, storage.JobFilter{PolicyID: p.ID})
	if len(jobs) != 1 || jobs[0].Revision != p.Revision {
		t.Errorf("jobs = %+v", jobs)
	}

	// Reassembly moves the revision, so a new job replaces the old one.
	p2, err := m.Reassemble(ctx, p.ID, mustAnswers(t, `{"pep_domestic": true}`), "alice")
	if err != nil {
		t.Fatal(err)
	}
	jobs, _ = store.ListJobs(ctx, storage.JobFilter{PolicyID: p.ID, Status: policy.JobPending})
	if len(jobs) != 1 || jobs[0].Revision != p2.Revision {
		t.Errorf("pending jobs after reassemble = %+v", jobs)
	}
}

func TestReassemble(t *testing.T) {
	m, _, _ := newManager(t, amlTemplate())
	ctx := context.Background()

	p, err := m.CreatePolicy(ctx, CreateRequest{OrganizationID: "org-1", TemplateCode: "aml", Name: "AML", CustomContent: map[string]string{"k": "v"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Transition(ctx, p.ID, policy.StatusInReview, "alice"); err != nil {
		t.Fatal(err)
	}

	p, err = m.Reassemble(ctx, p.ID, mustAnswers(t, `{"pep_domestic": true, "review_months": 6}`), "bob")
	if err != nil {
		t.Fatalf("Reassemble() error = %v", err)
	}
	if p.Status != policy.StatusDraft {
		t.Errorf("Status = %s, want draft", p.Status)
	}
	if len(p.Clauses) != 2 || p.Clauses[1].Body != "Apply EDD with a 6 month review." {
		t.Errorf("clauses = %+v", p.Clauses)
	}
	if p.CustomContent["k"] != "v" {
		t.Error("custom content lost on reassembly")
	}
	if p.Revision != 3 {
		t.Errorf("Revision = %d, want 3", p.Revision)
	}

	if _, err := m.Transition(ctx, p.ID, policy.StatusArchived, "bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Reassemble(ctx, p.ID, nil, "bob"); !errors.Is(err, versioning.ErrPolicyArchived) {
		t.Errorf("Reassemble(archived) error = %v", err)
	}
	if _, err := m.Reassemble(ctx, "ghost", nil, "bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Reassemble(ghost) error = %v", err)
	}
}

func TestTransition(t *testing.T) {
	m, _, _ := newManager(t, amlTemplate())
	ctx := context.Background()
	p, _ := m.CreatePolicy(ctx, CreateRequest{OrganizationID: "org-1", TemplateCode: "aml", Name: "AML"})

	if _, err := m.Transition(ctx, p.ID, policy.StatusApproved, "alice"); !errors.Is(err, policy.ErrInvalidTransition) {
		t.Errorf("draft -> approved error = %v", err)
	}
	if _, err := m.Transition(ctx, p.ID, policy.StatusInReview, "alice"); err != nil {
		t.Fatal(err)
	}
	p, err := m.Transition(ctx, p.ID, policy.StatusApproved, "carol")
	if err != nil {
		t.Fatal(err)
	}
	want := clock.Add(DefaultConfig().ReviewInterval)
	if p.NextReviewAt == nil || !p.NextReviewAt.Equal(want) {
		t.Errorf("NextReviewAt = %v, want %v", p.NextReviewAt, want)
	}
	if p.Approval == nil || p.Approval.SubmittedBy != "alice" || p.Approval.ApprovedBy != "carol" {
		t.Errorf("Approval = %+v", p.Approval)
	}
}

func TestSetCustomContent(t *testing.T) {
	m, _, _ := newManager(t, amlTemplate())
	ctx := context.Background()
	p, _ := m.CreatePolicy(ctx, CreateRequest{OrganizationID: "o", TemplateCode: "aml", Name: "AML", CustomContent: map[string]string{"a": "1", "b": "2"}})

	p, err := m.SetCustomContent(ctx, p.ID, map[string]string{"a": "", "c": "3"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p.CustomContent, map[string]string{"b": "2", "c": "3"}) {
		t.Errorf("CustomContent = %v", p.CustomContent)
	}
}

func TestPublishRestoreDiff(t *testing.T) {
	m, _, _ := newManager(t, amlTemplate())
	ctx := context.Background()
	p, _ := m.CreatePolicy(ctx, CreateRequest{OrganizationID: "o", TemplateCode: "aml", Name: "AML"})

	v1, err := m.Publish(ctx, p.ID, versioning.PublishRequest{PublishedBy: "alice", ChangeSummary: "initial"})
	if err != nil || v1.Number != 1 {
		t.Fatalf("Publish() = %+v, %v", v1, err)
	}
	if _, err := m.Reassemble(ctx, p.ID, mustAnswers(t, `{"pep_domestic": true}`), "alice"); err != nil {
		t.Fatal(err)
	}
	v2, err := m.Publish(ctx, p.ID, versioning.PublishRequest{PublishedBy: "alice"})
	if err != nil || v2.Number != 2 {
		t.Fatalf("Publish() = %+v, %v", v2, err)
	}

	d, err := m.Diff(ctx, p.ID, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if d.Count(versioning.ChangeAdded) != 1 || d.Clauses[0].Code != "edd_domestic_pep" {
		t.Errorf("Diff() = %+v", d)
	}

	restored, err := m.Restore(ctx, p.ID, 1, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(restored.ClauseCodes(), []string{"purpose"}) {
		t.Errorf("restored clauses = %v", restored.ClauseCodes())
	}

	cur, err := m.Version(ctx, p.ID, 0)
	if err != nil || cur.Number != 2 {
		t.Errorf("Version(current) = %+v, %v", cur, err)
	}
	versions, _ := m.Versions(ctx, p.ID)
	if len(versions) != 2 {
		t.Errorf("Versions() len = %d", len(versions))
	}
}

// flakyStore fails the first n updates with a revision conflict.
type flakyStore struct {
	*storage.MemoryStore
	mu        sync.Mutex
	conflicts int
}

func (s *flakyStore) UpdatePolicy(ctx context.Context, p *policy.Policy, expected int64) error {
	s.mu.Lock()
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return storage.ErrRevisionConflict
	}
	s.mu.Unlock()
	return s.MemoryStore.UpdatePolicy(ctx, p, expected)
}

func TestUpdate_RetriesConflicts(t *testing.T) {
	store := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	m := New(source.NewMemorySource(amlTemplate()), store, nil, nil)
	ctx := context.Background()
	if err := m.Load(ctx); err != nil {
		t.Fatal(err)
	}
	p, err := m.CreatePolicy(ctx, CreateRequest{OrganizationID: "o", TemplateCode: "aml", Name: "AML"})
	if err != nil {
		t.Fatal(err)
	}

	store.conflicts = 2
	if _, err := m.Transition(ctx, p.ID, policy.StatusInReview, "a"); err != nil {
		t.Errorf("Transition() with 2 conflicts error = %v", err)
	}

	store.conflicts = 100
	_, err = m.Transition(ctx, p.ID, policy.StatusDraft, "a")
	if !errors.Is(err, ErrUpdateContention) {
		t.Errorf("Transition() error = %v, want ErrUpdateContention", err)
	}
}

func TestEnhance_Disabled(t *testing.T) {
	m, _, _ := newManager(t, amlTemplate())
	if _, err := m.Enhance(context.Background(), "any"); !errors.Is(err, ErrEnhancementDisabled) {
		t.Errorf("Enhance() error = %v", err)
	}
}

type recordingMetrics struct {
	mu         sync.Mutex
	loads      []bool
	assemblies []string
	publishes  []bool
}

func (r *recordingMetrics) RecordCatalogLoad(ok bool, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads = append(r.loads, ok)
}

func (r *recordingMetrics) RecordAssembly(code string, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assemblies = append(r.assemblies, code)
}

func (r *recordingMetrics) RecordPublish(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishes = append(r.publishes, ok)
}

func TestMetrics(t *testing.T) {
	rec := &recordingMetrics{}
	m := New(source.NewMemorySource(amlTemplate()), storage.NewMemoryStore(), nil, nil).WithMetrics(rec)
	ctx := context.Background()
	if err := m.Load(ctx); err != nil {
		t.Fatal(err)
	}
	p, _ := m.CreatePolicy(ctx, CreateRequest{OrganizationID: "o", TemplateCode: "aml", Name: "AML"})
	_, _ = m.Publish(ctx, p.ID, versioning.PublishRequest{PublishedBy: "a"})
	_, _ = m.Publish(ctx, "ghost", versioning.PublishRequest{PublishedBy: "a"})

	if !reflect.DeepEqual(rec.loads, []bool{true}) {
		t.Errorf("loads = %v", rec.loads)
	}
	if !reflect.DeepEqual(rec.assemblies, []string{"aml"}) {
		t.Errorf("assemblies = %v", rec.assemblies)
	}
	if !reflect.DeepEqual(rec.publishes, []bool{true, false}) {
		t.Errorf("publishes = %v", rec.publishes)
	}
}

func TestCatalogError_Message(t *testing.T) {
	err := &CatalogError{Duplicates: []string{"aml"}}
	if !strings.Contains(err.Error(), "duplicate template codes: aml") {
		t.Errorf("Error() = %q", err.Error())
	}
	cause := errors.New("disk gone")
	if err := (&CatalogError{Cause: cause}); !errors.Is(err, cause) {
		t.Error("CatalogError does not unwrap its cause")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero depth", func(c *Config) { c.MaxConditionDepth = 0 }, true},
		{"negative review", func(c *Config) { c.ReviewInterval = -time.Hour }, true},
		{"zero retries", func(c *Config) { c.MaxUpdateRetries = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

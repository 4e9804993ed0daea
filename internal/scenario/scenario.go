package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"crmload/internal/driver"
	"crmload/internal/stats"
)

// Config sets the per-phase request counts.
type Config struct {
	AuthReads    int `json:"auth_reads"`
	Customers    int `json:"customers"`
	ListCalls    int `json:"list_calls"`
	ChatMessages int `json:"chat_messages"`
}

func (c Config) withDefaults() Config {
	if c.AuthReads <= 0 {
		c.AuthReads = 50
	}
	if c.Customers <= 0 {
		c.Customers = 15
	}
	if c.ListCalls <= 0 {
		c.ListCalls = 10
	}
	if c.ChatMessages <= 0 {
		c.ChatMessages = 10
	}
	return c
}

// PhaseCount is the number of phases Run walks through.
const PhaseCount = 5

// Scenario is the scripted user journey against the CRM API: account setup,
// authenticated reads, customer CRUD, pipeline inspection and AI chat. All
// traffic goes through the driver's Do/RunBatch primitives; the only state
// carried between steps is the bearer token from login.
type Scenario struct {
	drv      *driver.Driver
	payloads *PayloadEngine
	cfg      Config
	log      *zap.Logger
	out      io.Writer

	runID string
	token string

	// OnPhase, when set, is called before each phase starts.
	OnPhase func(name string, index, total int)
}

func New(drv *driver.Driver, cfg Config, log *zap.Logger, out io.Writer) *Scenario {
	if log == nil {
		log = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	return &Scenario{
		drv:      drv,
		payloads: NewPayloadEngine(),
		cfg:      cfg.withDefaults(),
		log:      log,
		out:      out,
		runID:    uuid.New().String()[:8],
	}
}

// Token returns the bearer token obtained during setup.
func (s *Scenario) Token() string { return s.token }

// Run executes all phases in order. A setup failure aborts the run; failures
// in later phases are reported and the run proceeds so the final report still
// covers everything that was sent.
func (s *Scenario) Run(ctx context.Context) error {
	s.phase("setup", 0)
	if err := s.Setup(ctx); err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	s.phase("authenticated reads", 1)
	s.AuthenticatedReads(ctx, s.cfg.AuthReads)

	s.phase("customer crud", 2)
	if err := s.CustomerCRUD(ctx, s.cfg.Customers); err != nil {
		s.printf("❌ customer phase aborted: %v\n", err)
	}

	s.phase("pipeline inspection", 3)
	s.PipelineInspection(ctx)

	s.phase("ai chat", 4)
	if err := s.AIChat(ctx, s.cfg.ChatMessages); err != nil {
		s.printf("❌ ai phase aborted: %v\n", err)
	}

	return nil
}

// Setup registers and activates a fresh owner account, logs in and completes
// onboarding. The token read from the login response authorizes every later
// phase.
func (s *Scenario) Setup(ctx context.Context) error {
	email, err := s.payloads.Render("owner-email", ownerEmailTmpl, PayloadData{RunID: s.runID})
	if err != nil {
		return err
	}

	reg := s.drv.Do(ctx, driver.Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body: map[string]string{
			"firstName": "Stress",
			"lastName":  "Owner",
			"email":     email,
			"password":  "SecurePass123!",
		},
	})
	if reg.Status == http.StatusTooManyRequests {
		return errors.New("registration rate limited")
	}
	if reg.Status == 0 {
		return fmt.Errorf("registration unreachable: %s", reg.Body)
	}

	// Best effort, test deployments expose this to skip email confirmation.
	s.drv.Do(ctx, driver.Request{
		Method: http.MethodPost,
		Path:   "/test/activate-user",
		Body:   map[string]string{"email": email},
	})

	login := s.drv.Do(ctx, driver.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   map[string]string{"email": email, "password": "SecurePass123!"},
	})
	if login.Status != http.StatusOK {
		return fmt.Errorf("login failed with status %d", login.Status)
	}

	s.token = gjson.Get(login.Body, "accessToken").String()
	if s.token == "" {
		return errors.New("login response missing accessToken")
	}
	s.log.Info("setup complete", zap.String("email", email))

	s.drv.Do(ctx, driver.Request{
		Method:  http.MethodPost,
		Path:    "/auth/finish",
		Body:    onboardingBody,
		Headers: s.bearer(),
	})

	return nil
}

// AuthenticatedReads fires count concurrent GETs round-robin over the read
// endpoints and prints batch timing.
func (s *Scenario) AuthenticatedReads(ctx context.Context, count int) []driver.Result {
	s.printf("\n📊 Testing %d authenticated operations...\n", count)

	reqs := make([]driver.Request, count)
	for i := range reqs {
		reqs[i] = driver.Request{
			Method:  http.MethodGet,
			Path:    readEndpoints[i%len(readEndpoints)],
			Headers: s.bearer(),
		}
	}

	start := time.Now()
	results := s.drv.RunBatch(ctx, reqs)
	s.reportBatch(results, time.Since(start))
	return results
}

// CustomerCRUD creates customers concurrently, then hammers the listing
// endpoint. The organization id comes from the profile; without it the phase
// cannot build valid customers and aborts.
func (s *Scenario) CustomerCRUD(ctx context.Context, count int) error {
	s.printf("\n👥 Testing %d customer operations...\n", count)

	profile := s.drv.Do(ctx, driver.Request{
		Method:  http.MethodGet,
		Path:    "/auth/profile",
		Headers: s.bearer(),
	})
	orgID := gjson.Get(profile.Body, "organizationId").String()
	if !profile.OK() || orgID == "" {
		return errors.New("could not get organization id")
	}

	creates := make([]driver.Request, count)
	for i := range creates {
		body, err := s.payloads.Render("customer", customerTmpl, customerData{
			PayloadData: PayloadData{Seq: i, RunID: s.runID},
			OrgID:       orgID,
		})
		if err != nil {
			return fmt.Errorf("render customer payload: %w", err)
		}
		creates[i] = driver.Request{
			Method:  http.MethodPost,
			Path:    "/customers",
			Body:    body,
			Headers: s.bearer(),
		}
	}

	start := time.Now()
	created := s.drv.RunBatch(ctx, creates)
	ok := 0
	for _, r := range created {
		if r.Status == http.StatusCreated {
			ok++
		}
	}
	s.printf("✅ Created %d/%d customers in %.2fs\n", ok, count, time.Since(start).Seconds())

	lists := make([]driver.Request, s.cfg.ListCalls)
	for i := range lists {
		lists[i] = driver.Request{
			Method:  http.MethodGet,
			Path:    "/customers?page=1&limit=20",
			Headers: s.bearer(),
		}
	}

	start = time.Now()
	listed := s.drv.RunBatch(ctx, lists)
	ok = 0
	for _, r := range listed {
		if r.Status == http.StatusOK {
			ok++
		}
	}
	s.printf("✅ Listed customers %d/%d times in %.2fs\n", ok, len(lists), time.Since(start).Seconds())

	return nil
}

// PipelineInspection walks the first pipeline's stages and checks the
// localized default stage names are present.
func (s *Scenario) PipelineInspection(ctx context.Context) {
	s.printf("\n📊 Testing pipeline operations...\n")

	res := s.drv.Do(ctx, driver.Request{
		Method:  http.MethodGet,
		Path:    "/pipelines",
		Headers: s.bearer(),
	})
	if !res.OK() {
		s.printf("❌ pipeline listing failed (status %d)\n", res.Status)
		return
	}

	pipelineID := gjson.Get(res.Body, "data.0.id").String()
	if pipelineID == "" {
		s.printf("❌ no pipelines found\n")
		return
	}

	stagesRes := s.drv.Do(ctx, driver.Request{
		Method:  http.MethodGet,
		Path:    "/pipelines/" + pipelineID + "/stages",
		Headers: s.bearer(),
	})
	if !stagesRes.OK() {
		s.printf("❌ stage listing failed (status %d)\n", stagesRes.Status)
		return
	}

	names := map[string]bool{}
	for _, n := range gjson.Get(stagesRes.Body, "data.stages.#.name").Array() {
		names[n.String()] = true
	}
	s.printf("✅ Pipeline has %d stages\n", len(names))

	missing := false
	for _, want := range expectedStageNames {
		if !names[want] {
			missing = true
			break
		}
	}
	if missing {
		s.printf("❌ localized stage names missing\n")
	} else {
		s.printf("✅ localization verified\n")
	}
}

// AIChat configures the assistant, then sends count concurrent chat messages.
func (s *Scenario) AIChat(ctx context.Context, count int) error {
	s.printf("\n🤖 Testing AI assistant with %d requests...\n", count)

	cfgRes := s.drv.Do(ctx, driver.Request{
		Method:  http.MethodPost,
		Path:    "/ai/assistant/configure",
		Body:    assistantConfigBody,
		Headers: s.bearer(),
	})
	if cfgRes.Status != http.StatusCreated {
		return fmt.Errorf("assistant configuration failed (status %d)", cfgRes.Status)
	}

	reqs := make([]driver.Request, count)
	for i := range reqs {
		reqs[i] = driver.Request{
			Method: http.MethodPost,
			Path:   "/ai/chat",
			Body: map[string]string{
				"message": fmt.Sprintf("%s (запрос %d)", chatMessages[i%len(chatMessages)], i+1),
				"context": "general",
			},
			Headers: s.bearer(),
		}
	}

	start := time.Now()
	results := s.drv.RunBatch(ctx, reqs)
	ok := 0
	for _, r := range results {
		if r.OK() {
			ok++
		}
	}
	s.printf("✅ %d/%d AI chat requests in %.2fs\n", ok, count, time.Since(start).Seconds())

	return nil
}

func (s *Scenario) bearer() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.token}
}

func (s *Scenario) phase(name string, index int) {
	s.log.Info("phase start", zap.String("phase", name))
	if s.OnPhase != nil {
		s.OnPhase(name, index, PhaseCount)
	}
}

func (s *Scenario) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Scenario) reportBatch(results []driver.Result, total time.Duration) {
	ok := 0
	var latencies []float64
	for _, r := range results {
		if r.OK() {
			ok++
		}
		if r.Status > 0 {
			latencies = append(latencies, r.ElapsedMs())
		}
	}
	s.printf("✅ %d/%d requests completed in %.2fs\n", ok, len(results), total.Seconds())

	if sum := stats.Summarize(latencies); sum.Count > 0 {
		s.printf("📈 Response Time Stats:\n")
		s.printf("   Average: %.2fms\n", sum.MeanMs)
		s.printf("   Median: %.2fms\n", sum.MedianMs)
		s.printf("   95th percentile: %.2fms\n", sum.P95Ms)
		s.printf("   Max: %.2fms\n", sum.MaxMs)
	}
}

package scenario

// Fixture payloads sent to the CRM API. The business content is arbitrary,
// the templates only have to produce valid bodies with unique identifying
// fields per run.

const ownerEmailTmpl = "stress-owner-{{.RunID}}@load.test"

const customerTmpl = `{
  "organizationId": "{{.OrgID}}",
  "firstName": "LoadCustomer{{.Seq}}",
  "lastName": "Test",
  "email": "load-customer-{{.Seq}}-{{.RunID}}@stress.test",
  "phone": "+7700123{{printf "%04d" .Seq}}",
  "companyName": "Load Corp {{.Seq}}"
}`

type customerData struct {
	PayloadData
	OrgID string
}

var onboardingBody = map[string]any{
	"onboardingData": map[string]any{
		"userType":    "owner",
		"companyName": "Stress Test Corp",
		"companyBin":  "999888777000",
		"industry":    "Load Testing",
	},
}

var assistantConfigBody = map[string]any{
	"assistantName":   "Stress Test AI",
	"personality":     "professional",
	"expertise":       []string{"Sales & Marketing"},
	"voicePreference": "female",
}

// Read endpoints hit round-robin during the authenticated phase.
var readEndpoints = []string{
	"/auth/profile",
	"/customers",
	"/pipelines",
	"/ai/capabilities",
}

// Default pipeline stage names of a fresh tenant (ru-KZ localization).
var expectedStageNames = []string{
	"Лиды",
	"Квалификация",
	"Предложение",
	"Переговоры",
}

// Rotating chat prompts for the AI phase.
var chatMessages = []string{
	"Привет, как дела?",
	"Покажи статистику продаж",
	"Создай отчет по клиентам",
	"Анализируй performance",
	"Что нового в системе?",
}

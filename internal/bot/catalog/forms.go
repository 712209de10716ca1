package catalog

// Form describes the ordered free-text fields one collection flow gathers.
type Form struct {
	Name   string
	Fields []FormField
}

// FormField is one prompt/answer pair in a collection flow.
type FormField struct {
	// Key is the session field the answer is stored under.
	Key string
	// Prompt is sent to ask for the field.
	Prompt string
}

// NextField returns the field following key, or false when key is the last
// field (the form is complete once it is answered).
func (f Form) NextField(key string) (FormField, bool) {
	for i, field := range f.Fields {
		if field.Key == key && i+1 < len(f.Fields) {
			return f.Fields[i+1], true
		}
	}
	return FormField{}, false
}

// First returns the opening field of the form.
func (f Form) First() FormField {
	return f.Fields[0]
}

// QuoteForm gathers the details needed to prepare a quote.
var QuoteForm = Form{Name: "quote", Fields: []FormField{
	{Key: "name", Prompt: "To help us prepare a quote, please provide your full name.\n\nOnce we've collected your details, we will respond within 24 hours."},
	{Key: "contact", Prompt: "Thank you. Please provide your email or WhatsApp number:"},
	{Key: "service", Prompt: "Please specify the type of service you need:"},
	{Key: "description", Prompt: "Please provide a short description of your project:"},
}}

// CallbackForm gathers a call-back request.
var CallbackForm = Form{Name: "callback", Fields: []FormField{
	{Key: "name", Prompt: "Please provide your full name."},
	{Key: "time", Prompt: "Thank you. Please provide the best time to call:"},
}}

// SupportForm gathers the free-text details of a support request. The support
// category is recorded separately by the support menu step.
var SupportForm = Form{Name: "support", Fields: []FormField{
	{Key: "details", Prompt: "Please describe your enquiry:"},
}}

// CustomServiceForm gathers a description of a service we do not list.
var CustomServiceForm = Form{Name: "custom_service", Fields: []FormField{
	{Key: "description", Prompt: "Please describe the service you're looking for:"},
}}

// SupportPrompts overrides the opening prompt of SupportForm per category so
// the customer is asked for the right details.
var SupportPrompts = map[string]string{
	SupportTech:    "Please describe your technical issue:\n1. System/feature having issues\n2. Error messages received\n3. Steps to reproduce the issue",
	SupportBilling: "Please provide:\n1. Invoice/transaction number\n2. Payment method used\n3. Description of the issue",
	SupportGeneral: "Please describe your enquiry:",
}

// ServiceDescriptions holds the copy shown when a single service is selected.
var ServiceDescriptions = map[string]string{
	ServiceDomain:     "We provide domain registration and reliable web hosting services with 99.9% uptime.",
	ServiceWebsite:    "Custom website and web application development tailored to your business needs.",
	ServiceMobile:     "Native and hybrid mobile app development for iOS and Android platforms.",
	ServicePayments:   "Secure payment gateway integrations with local and international providers.",
	ServiceAI:         "AI-powered solutions including chatbots, data analysis, and process automation.",
	ServiceDashboards: "Custom business dashboards for real-time data visualization and reporting.",
}

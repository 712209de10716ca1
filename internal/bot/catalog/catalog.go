// Package catalog holds the static menu data the dialogue presents: named
// option sets for every choice step and the field sequences collected by the
// free-text form steps.  It is pure data; nothing here talks to the store or
// the channel.
package catalog

import "fmt"

// Channel delivery limits. WhatsApp interactive messages allow at most 3
// quick-reply buttons and at most 10 list rows; every structured set in the
// catalog must fit one of the two shapes.
const (
	MaxQuickReplyOptions = 3
	MaxListOptions       = 10
)

// Option is one selectable menu entry: a stable identifier used for
// structured replies and a human-facing label used for display and free-text
// matching.
type Option struct {
	ID    string
	Label string
}

// Set is a named, ordered group of options presented at one choice step.
// Order matters: the intent matcher breaks score ties in declaration order.
type Set struct {
	Name    string
	Options []Option
}

// Validate checks the set against the channel delivery limits and rejects
// duplicate option IDs.
func (s Set) Validate() error {
	if len(s.Options) == 0 {
		return fmt.Errorf("option set %q is empty", s.Name)
	}
	if len(s.Options) > MaxListOptions {
		return fmt.Errorf("option set %q has %d options, channel limit is %d", s.Name, len(s.Options), MaxListOptions)
	}
	seen := make(map[string]bool, len(s.Options))
	for _, opt := range s.Options {
		if opt.ID == "" || opt.Label == "" {
			return fmt.Errorf("option set %q contains an option with an empty id or label", s.Name)
		}
		if seen[opt.ID] {
			return fmt.Errorf("option set %q has duplicate option id %q", s.Name, opt.ID)
		}
		seen[opt.ID] = true
	}
	return nil
}

// Labels returns the display labels in declaration order.
func (s Set) Labels() []string {
	labels := make([]string, len(s.Options))
	for i, opt := range s.Options {
		labels[i] = opt.Label
	}
	return labels
}

// ByID returns the option with the given ID, or false when absent.
func (s Set) ByID(id string) (Option, bool) {
	for _, opt := range s.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// Option IDs, grouped per set.  IDs are referenced by the dialogue transition
// tables and by the handoff decision parser, so they are exported constants
// rather than string literals scattered across handlers.
const (
	MainAbout    = "main_about"
	MainServices = "main_services"
	MainQuote    = "main_quote"
	MainSupport  = "main_support"
	MainContact  = "main_contact"

	AboutPortfolio = "about_portfolio"
	AboutProfile   = "about_profile"
	AboutBack      = "about_back"

	ServiceDomain     = "svc_domain"
	ServiceWebsite    = "svc_website"
	ServiceMobile     = "svc_mobile"
	ServiceChatbot    = "svc_chatbot"
	ServicePayments   = "svc_payments"
	ServiceAI         = "svc_ai"
	ServiceDashboards = "svc_dashboards"
	ServiceOther      = "svc_other"

	ChatbotQuote  = "chatbot_quote"
	ChatbotSample = "chatbot_sample"
	ChatbotBack   = "chatbot_back"

	DetailQuote = "detail_quote"
	DetailBack  = "detail_back"

	QuoteCallback   = "quote_callback"
	QuoteNoCallback = "quote_no_callback"
	QuoteBack       = "quote_back"

	SupportTech    = "support_tech"
	SupportBilling = "support_billing"
	SupportGeneral = "support_general"
	SupportBack    = "support_back"

	ContactCallback = "contact_callback"
	ContactAgent    = "contact_agent"
	ContactBack     = "contact_back"

	AgentAccept  = "agent_accept"
	AgentDecline = "agent_decline"
	AgentEnd     = "agent_end"

	WaitKeepWaiting = "wait_keep"
	WaitBackToMenu  = "wait_menu"

	RestartYes = "restart_yes"
	RestartNo  = "restart_no"
)

// MainMenu is presented at the welcome step.
var MainMenu = Set{Name: "main_menu", Options: []Option{
	{ID: MainAbout, Label: "Learn about Contessasoft"},
	{ID: MainServices, Label: "Our Services"},
	{ID: MainQuote, Label: "Request a Quote"},
	{ID: MainSupport, Label: "Talk to Support"},
	{ID: MainContact, Label: "Contact Us"},
}}

// AboutMenu follows the company introduction.
var AboutMenu = Set{Name: "about_menu", Options: []Option{
	{ID: AboutPortfolio, Label: "View our portfolio"},
	{ID: AboutProfile, Label: "Download company profile"},
	{ID: AboutBack, Label: "Back to main menu"},
}}

// ServicesMenu lists the service lines. The final entry switches the dialogue
// into free-text collection.
var ServicesMenu = Set{Name: "services_menu", Options: []Option{
	{ID: ServiceDomain, Label: "Domain Registration & Web Hosting"},
	{ID: ServiceWebsite, Label: "Website and Web App Development"},
	{ID: ServiceMobile, Label: "Mobile App Development"},
	{ID: ServiceChatbot, Label: "WhatsApp Chatbots"},
	{ID: ServicePayments, Label: "Payment Integrations"},
	{ID: ServiceAI, Label: "AI and Automation"},
	{ID: ServiceDashboards, Label: "Custom Dashboards"},
	{ID: ServiceOther, Label: "Something else - Write what you want in reply"},
}}

// ChatbotMenu is the drill-down under the WhatsApp Chatbots service.
var ChatbotMenu = Set{Name: "chatbot_menu", Options: []Option{
	{ID: ChatbotQuote, Label: "Request a quote"},
	{ID: ChatbotSample, Label: "View sample chatbot"},
	{ID: ChatbotBack, Label: "Back to services"},
}}

// ServiceDetail is the two-button prompt under a single service description.
var ServiceDetail = Set{Name: "service_detail", Options: []Option{
	{ID: DetailQuote, Label: "Request Quote"},
	{ID: DetailBack, Label: "Back to Services"},
}}

// QuoteFollowup asks whether to call back after a quote form is submitted.
var QuoteFollowup = Set{Name: "quote_followup", Options: []Option{
	{ID: QuoteCallback, Label: "Yes, call me"},
	{ID: QuoteNoCallback, Label: "No, just send the quote"},
	{ID: QuoteBack, Label: "Back to main menu"},
}}

// SupportMenu selects the support category.
var SupportMenu = Set{Name: "support_menu", Options: []Option{
	{ID: SupportTech, Label: "Technical support"},
	{ID: SupportBilling, Label: "Payment or billing help"},
	{ID: SupportGeneral, Label: "General enquiry"},
	{ID: SupportBack, Label: "Back to main menu"},
}}

// ContactMenu offers the contact paths, including the live-agent handoff.
var ContactMenu = Set{Name: "contact_menu", Options: []Option{
	{ID: ContactCallback, Label: "Request a call back"},
	{ID: ContactAgent, Label: "Speak to an agent"},
	{ID: ContactBack, Label: "Back to main menu"},
}}

// AgentDecision is sent to an agent when a handoff is requested and while the
// conversation is live (the End option).
var AgentDecision = Set{Name: "agent_decision", Options: []Option{
	{ID: AgentAccept, Label: "Accept conversation"},
	{ID: AgentDecline, Label: "Decline conversation"},
	{ID: AgentEnd, Label: "End conversation and return to bot"},
}}

// HandoffWait is offered to a customer when no agent decision arrives in time.
var HandoffWait = Set{Name: "handoff_wait", Options: []Option{
	{ID: WaitKeepWaiting, Label: "Keep waiting"},
	{ID: WaitBackToMenu, Label: "Back to main menu"},
}}

// RestartConfirm is asked after a live conversation ends, before dropping the
// customer back into the menu.
var RestartConfirm = Set{Name: "restart_confirm", Options: []Option{
	{ID: RestartYes, Label: "Yes, back to the menu"},
	{ID: RestartNo, Label: "No, I'm done for now"},
}}

// All enumerates every option set in the catalog; used by validation and by
// the cardinality tests.
var All = []Set{
	MainMenu, AboutMenu, ServicesMenu, ChatbotMenu, ServiceDetail,
	QuoteFollowup, SupportMenu, ContactMenu, AgentDecision, HandoffWait,
	RestartConfirm,
}

// QuickReplySets names the sets that are delivered as quick-reply buttons
// rather than lists and must therefore fit MaxQuickReplyOptions.
var QuickReplySets = []Set{ServiceDetail, HandoffWait, RestartConfirm}

package dialogue

import (
	"context"
	"fmt"

	"github.com/contessasoft/nyati/internal/bot/catalog"
)

const (
	welcomeText = "Welcome to Contessasoft (Private) Limited!\n\n" +
		"We build intelligent software solutions including websites, mobile apps, chatbots, and business systems.\n\n" +
		"Please choose an option to continue:"

	aboutText = "Contessasoft is a Zimbabwe-based software company established in 2022.\n" +
		"We develop custom systems for businesses in finance, education, logistics, retail, and other sectors."

	portfolioText = "Our portfolio includes:\n" +
		"- Banking systems\n" +
		"- School management systems\n" +
		"- E-commerce platforms\n" +
		"- Logistics tracking systems\n" +
		"- Custom business automation"

	profileText = "You can download our company profile from: https://contessasoft.co.zw/profile.pdf"

	contactText = "You can reach Contessasoft through the following:\n\n" +
		"Address: 115 ED Mnangagwa Road, Highlands, Harare, Zimbabwe\n" +
		"WhatsApp: +263 242 498954\n" +
		"Email: sales@contessasoft.co.zw"

	chatbotText = "We build automated WhatsApp bots for:\n" +
		"- Bill payments (ZESA, DStv, school fees)\n" +
		"- Customer service\n" +
		"- Order processing\n" +
		"- KYC and registration\n" +
		"- Ticketing and support"

	sampleText = "You can view a sample chatbot at: https://wa.me/263242498954?text=sample"
)

// fieldCategory stores the selected support category across the
// support_details collection step.
const fieldCategory = "_category"

// buildRegistry declares the whole dialogue graph.  Every step the engine can
// ever write into a session appears here; the tests assert that.
func buildRegistry() map[string]*Step {
	steps := make(map[string]*Step)
	add := func(s *Step) { steps[s.Name] = s }

	add(&Step{
		Name:           StepWelcome,
		Kind:           KindChoice,
		Prompt:         welcomeText,
		Options:        catalog.MainMenu,
		GreetOnNoMatch: true,
		OnChoice:       onMainMenu,
	})
	add(&Step{
		Name:     StepAboutMenu,
		Kind:     KindChoice,
		Prompt:   aboutText,
		Options:  catalog.AboutMenu,
		OnChoice: onAboutMenu,
	})
	add(&Step{
		Name:     StepServicesMenu,
		Kind:     KindChoice,
		Prompt:   "We offer the following services. Choose one to learn more.",
		Options:  catalog.ServicesMenu,
		OnChoice: onServicesMenu,
	})
	add(&Step{
		Name:     StepServiceDetail,
		Kind:     KindChoice,
		Options:  catalog.ServiceDetail,
		AsButton: true,
		OnChoice: onServiceDetail,
	})
	add(&Step{
		Name:     StepChatbotMenu,
		Kind:     KindChoice,
		Prompt:   chatbotText,
		Options:  catalog.ChatbotMenu,
		OnChoice: onChatbotMenu,
	})
	add(&Step{
		Name:       StepQuoteForm,
		Kind:       KindCollection,
		Form:       catalog.QuoteForm,
		OnComplete: completeQuoteForm,
	})
	add(&Step{
		Name:     StepQuoteFollowup,
		Kind:     KindChoice,
		Prompt:   "Would you like a call back after submitting?",
		Options:  catalog.QuoteFollowup,
		OnChoice: onQuoteFollowup,
	})
	add(&Step{
		Name:     StepSupportMenu,
		Kind:     KindChoice,
		Prompt:   "Please select the type of support you need:",
		Options:  catalog.SupportMenu,
		OnChoice: onSupportMenu,
	})
	add(&Step{
		Name:       StepSupportDetails,
		Kind:       KindCollection,
		Form:       catalog.SupportForm,
		OnComplete: completeSupportForm,
	})
	add(&Step{
		Name:     StepContactMenu,
		Kind:     KindChoice,
		Prompt:   contactText,
		Options:  catalog.ContactMenu,
		OnChoice: onContactMenu,
	})
	add(&Step{
		Name:       StepCallbackForm,
		Kind:       KindCollection,
		Form:       catalog.CallbackForm,
		OnComplete: completeCallbackForm,
	})
	add(&Step{
		Name:       StepCustomService,
		Kind:       KindCollection,
		Form:       catalog.CustomServiceForm,
		OnComplete: completeCustomServiceForm,
	})
	add(&Step{
		Name: StepAgentChat,
		Kind: KindHandoff,
	})
	add(&Step{
		Name:     StepRestartConfirm,
		Kind:     KindChoice,
		Prompt:   "Would you like to go back to the main menu?",
		Options:  catalog.RestartConfirm,
		AsButton: true,
		OnChoice: onRestartConfirm,
	})

	return steps
}

func onMainMenu(ctx context.Context, f *flow, opt catalog.Option) error {
	switch opt.ID {
	case catalog.MainAbout:
		return f.enter(ctx, StepAboutMenu)
	case catalog.MainServices:
		return f.enter(ctx, StepServicesMenu)
	case catalog.MainQuote:
		return f.enter(ctx, StepQuoteForm)
	case catalog.MainSupport:
		return f.enter(ctx, StepSupportMenu)
	case catalog.MainContact:
		return f.enter(ctx, StepContactMenu)
	default:
		return fmt.Errorf("main menu: unhandled option %q", opt.ID)
	}
}

func onAboutMenu(ctx context.Context, f *flow, opt catalog.Option) error {
	switch opt.ID {
	case catalog.AboutPortfolio:
		if err := f.say(ctx, portfolioText); err != nil {
			return err
		}
		return f.enter(ctx, StepWelcome)
	case catalog.AboutProfile:
		if err := f.say(ctx, profileText); err != nil {
			return err
		}
		return f.enter(ctx, StepWelcome)
	case catalog.AboutBack:
		return f.enter(ctx, StepWelcome)
	default:
		return fmt.Errorf("about menu: unhandled option %q", opt.ID)
	}
}

func onServicesMenu(ctx context.Context, f *flow, opt catalog.Option) error {
	switch opt.ID {
	case catalog.ServiceChatbot:
		return f.enter(ctx, StepChatbotMenu)
	case catalog.ServiceOther:
		return f.enter(ctx, StepCustomService)
	default:
		desc, ok := catalog.ServiceDescriptions[opt.ID]
		if !ok {
			return fmt.Errorf("services menu: no description for %q", opt.ID)
		}
		f.sess.Step = StepServiceDetail
		return f.engine.sender.QuickReply(ctx, f.sess.Sender, desc, catalog.ServiceDetail.Options)
	}
}

func onServiceDetail(ctx context.Context, f *flow, opt catalog.Option) error {
	switch opt.ID {
	case catalog.DetailQuote:
		return f.enter(ctx, StepQuoteForm)
	case catalog.DetailBack:
		return f.enter(ctx, StepServicesMenu)
	default:
		return fmt.Errorf("service detail: unhandled option %q", opt.ID)
	}
}

func onChatbotMenu(ctx context.Context, f *flow, opt catalog.Option) error {
	switch opt.ID {
	case catalog.ChatbotQuote:
		return f.enter(ctx, StepQuoteForm)
	case catalog.ChatbotSample:
		if err := f.say(ctx, sampleText); err != nil {
			return err
		}
		return f.enter(ctx, StepWelcome)
	case catalog.ChatbotBack:
		return f.enter(ctx, StepServicesMenu)
	default:
		return fmt.Errorf("chatbot menu: unhandled option %q", opt.ID)
	}
}

// completeQuoteForm archives the quote request, alerts the owner, and asks
// about a call back.  Collected fields stay on the session until the
// follow-up answer so the callback notification can quote them.
func completeQuoteForm(ctx context.Context, f *flow) error {
	ref, err := f.engine.forms.SaveForm(ctx, "quote", f.sess.Sender, formFields(f))
	if err != nil {
		return err
	}
	f.sess.SetField("_reference", ref)

	ownerMsg := fmt.Sprintf(
		"New Quote Request (#%s)\n\nName: %s\nPhone: %s\nContact: %s\nService: %s\nDescription: %s",
		ref, f.sess.Field("name"), f.sess.Sender, f.sess.Field("contact"),
		f.sess.Field("service"), f.sess.Field("description"))
	if err := f.notifyOwner(ctx, ownerMsg); err != nil {
		return err
	}

	return f.enter(ctx, StepQuoteFollowup)
}

func onQuoteFollowup(ctx context.Context, f *flow, opt catalog.Option) error {
	ref := f.sess.Field("_reference")
	switch opt.ID {
	case catalog.QuoteCallback:
		if err := f.notifyOwner(ctx, fmt.Sprintf(
			"Callback requested by %s (%s) for quote #%s",
			f.sess.Field("name"), f.sess.Sender, ref)); err != nil {
			return err
		}
		if err := f.say(ctx, fmt.Sprintf(
			"Thank you! Your request has been submitted. Our team will call you within 24 hours.\nReference: #%s", ref)); err != nil {
			return err
		}
	case catalog.QuoteNoCallback:
		if err := f.say(ctx,
			"Thank you! Your request has been submitted. You'll receive the quote via WhatsApp/email within 24 hours."); err != nil {
			return err
		}
	case catalog.QuoteBack:
		// Abandoned after submission; the archived form stands.
	default:
		return fmt.Errorf("quote followup: unhandled option %q", opt.ID)
	}
	f.sess.ClearFields()
	return f.enter(ctx, StepWelcome)
}

func onSupportMenu(ctx context.Context, f *flow, opt catalog.Option) error {
	if opt.ID == catalog.SupportBack {
		return f.enter(ctx, StepWelcome)
	}
	prompt, ok := catalog.SupportPrompts[opt.ID]
	if !ok {
		return fmt.Errorf("support menu: unhandled option %q", opt.ID)
	}
	f.sess.SetField(fieldCategory, opt.Label)
	return f.enterCollection(ctx, StepSupportDetails, prompt)
}

func completeSupportForm(ctx context.Context, f *flow) error {
	ref, err := f.engine.forms.SaveForm(ctx, "support", f.sess.Sender, formFields(f))
	if err != nil {
		return err
	}
	if err := f.notifyOwner(ctx, fmt.Sprintf(
		"New Support Request (%s)\n\nFrom: %s\nDetails: %s\nReference: #%s",
		f.sess.Field(fieldCategory), f.sess.Sender, f.sess.Field("details"), ref)); err != nil {
		return err
	}
	if err := f.say(ctx, fmt.Sprintf(
		"Thank you! Your support request has been logged. Our team will respond shortly.\nReference: #%s", ref)); err != nil {
		return err
	}
	f.sess.ClearFields()
	return f.enter(ctx, StepWelcome)
}

func onContactMenu(ctx context.Context, f *flow, opt catalog.Option) error {
	switch opt.ID {
	case catalog.ContactCallback:
		return f.enter(ctx, StepCallbackForm)
	case catalog.ContactAgent:
		if err := f.say(ctx,
			"Connecting you to an agent...\nIf no one is available immediately, your message will be forwarded and you'll receive a response soon."); err != nil {
			return err
		}
		return f.enter(ctx, StepAgentChat)
	case catalog.ContactBack:
		return f.enter(ctx, StepWelcome)
	default:
		return fmt.Errorf("contact menu: unhandled option %q", opt.ID)
	}
}

func completeCallbackForm(ctx context.Context, f *flow) error {
	ref, err := f.engine.forms.SaveForm(ctx, "callback", f.sess.Sender, formFields(f))
	if err != nil {
		return err
	}
	if err := f.notifyOwner(ctx, fmt.Sprintf(
		"Callback Request\n\nName: %s\nPhone: %s\nPreferred Time: %s\nReference: #%s",
		f.sess.Field("name"), f.sess.Sender, f.sess.Field("time"), ref)); err != nil {
		return err
	}
	if err := f.say(ctx, fmt.Sprintf(
		"Thank you! We'll call you at the requested time.\nReference: #%s", ref)); err != nil {
		return err
	}
	f.sess.ClearFields()
	return f.enter(ctx, StepWelcome)
}

func completeCustomServiceForm(ctx context.Context, f *flow) error {
	ref, err := f.engine.forms.SaveForm(ctx, "custom_service", f.sess.Sender, formFields(f))
	if err != nil {
		return err
	}
	if err := f.notifyOwner(ctx, fmt.Sprintf(
		"Custom Service Enquiry (#%s)\n\nFrom: %s\nDescription: %s",
		ref, f.sess.Sender, f.sess.Field("description"))); err != nil {
		return err
	}
	if err := f.say(ctx,
		"Thank you! We've recorded your request and will get back to you with details shortly."); err != nil {
		return err
	}
	f.sess.ClearFields()
	return f.enter(ctx, StepWelcome)
}

func onRestartConfirm(ctx context.Context, f *flow, opt catalog.Option) error {
	switch opt.ID {
	case catalog.RestartYes:
		return f.enter(ctx, StepWelcome)
	case catalog.RestartNo:
		if err := f.say(ctx, "Alright. Message us any time you need help."); err != nil {
			return err
		}
		// Stay parked at the menu step; any later message resumes there.
		f.sess.Step = StepWelcome
		return nil
	default:
		return fmt.Errorf("restart confirm: unhandled option %q", opt.ID)
	}
}

// formFields snapshots the user-supplied answers, dropping the engine's
// bookkeeping keys.
func formFields(f *flow) map[string]string {
	out := make(map[string]string, len(f.sess.Fields))
	for k, v := range f.sess.Fields {
		if k == fieldNext || k == fieldCategory || k == "_reference" {
			continue
		}
		out[k] = v
	}
	if cat := f.sess.Field(fieldCategory); cat != "" {
		out["category"] = cat
	}
	return out
}

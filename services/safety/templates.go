// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import "strings"

// Response templates, keyed by category then severity. Placeholders
// ({eap_phone}, {hr_phone}, {security_extension}) are filled from the
// deployment's configured contact points at render time.
//
// Tone requirements for every template: non-judgmental, concrete next
// steps, privacy assurance. Never scold, never diagnose.
var responseTemplates = map[SafetyCategory]map[Severity]string{
	SafetyCategorySelfHarm: {
		SeverityCritical: `Your safety is the most important thing right now.

**Immediate Support Available:**
• 988 Suicide & Crisis Lifeline: Call or text 988 (24/7)
• Employee Assistance Program: {eap_phone} (24/7, confidential)
• If this is a medical emergency, call 911

**You Are Not Alone:**
These feelings are temporary, and support is available. Speaking with a trained professional can help.

**Confidential & Private:**
Your privacy is protected. These resources are confidential and separate from your employment record.

I care about your wellbeing and want to ensure you get the support you deserve.`,

		SeverityHigh: `I'm concerned about what you've shared and want to make sure you have support.

**Immediate Resources:**
• 988 Suicide & Crisis Lifeline: Call or text 988
• Employee Assistance Program: {eap_phone} (confidential, 24/7)
• Crisis Text Line: Text HOME to 741741

**It's Okay to Ask for Help:**
Reaching out takes courage. These services are confidential and staffed by people who care.

**Your Privacy Matters:**
Conversations with these resources are private and will not affect your employment.

Would you like me to help you with something else, or would you prefer to focus on getting support right now?`,

		SeverityMedium: `I notice you might be going through a difficult time. Support is available if you need it.

**Resources Available:**
• Employee Assistance Program: {eap_phone} (confidential counseling)
• 988 Suicide & Crisis Lifeline: Call or text 988

**Taking Care of Yourself:**
It's important to reach out when things feel overwhelming. These services are confidential and here to help.

Can I help you with something work-related, or would you like more information about support resources?`,
	},

	SafetyCategoryHarmToOthers: {
		SeverityCritical: `**Immediate Action Required**

For everyone's safety, please contact:
• Store Security: {security_extension}
• Call 911 if there is immediate danger
• Store Manager: Available now

**Workplace Safety:**
We take all safety concerns seriously. Speaking with security or management helps ensure everyone stays safe.

**Confidential Support:**
If you're feeling angry or upset, our Employee Assistance Program is available 24/7 at {eap_phone}.

**Next Steps:**
Please speak with a manager or security immediately. They are trained to help in these situations.`,

		SeverityHigh: `I'm concerned about what you've mentioned. Everyone's safety is important.

**Please Contact:**
• Store Security: {security_extension}
• Your Store Manager
• Employee Assistance Program: {eap_phone} (confidential support)

**Workplace Safety:**
We're committed to maintaining a safe environment for everyone. Speaking with management helps address concerns appropriately.

**Confidential Resources:**
If you're experiencing stress or frustration, EAP provides confidential counseling and support.

Would you like to speak with someone about this?`,

		SeverityMedium: `I want to make sure everyone stays safe and supported.

**Resources Available:**
• Employee Assistance Program: {eap_phone} (confidential counseling)
• Speak with your Store Manager
• HR Support Line: {hr_phone}

**Conflict Resolution:**
If you're dealing with workplace conflict or stress, these resources can help find solutions.

Can I help you with something else, or would you like more information about these resources?`,
	},

	SafetyCategoryDistress: {
		SeverityHigh: `It sounds like you're dealing with something difficult. Support is available.

**Resources to Help:**
• Employee Assistance Program: {eap_phone} (confidential, 24/7)
• 988 Suicide & Crisis Lifeline: Call or text 988
• Speak with your Store Manager (in confidence)

**You're Not Alone:**
Many people go through difficult times. Reaching out for support is a positive step.

**Confidential & Private:**
These services are confidential and separate from your work record.

Can I also help you with any work-related questions?`,

		SeverityMedium: `I hear that things might be challenging right now. Resources are available if you need them.

**Support Available:**
• Employee Assistance Program: {eap_phone} (confidential counseling)
• Speak with your Store Manager
• HR Support: {hr_phone}

**Taking Care of Yourself:**
It's okay to reach out when you need support. These resources are here to help.

How else can I assist you today?`,

		SeverityLow: `I'm here to help. If you're going through a tough time, resources are available.

**Support Options:**
• Employee Assistance Program: {eap_phone}
• Speak with your Store Manager
• HR Support: {hr_phone}

How can I help you with work-related questions?`,
	},

	SafetyCategoryProfanity: {
		SeverityHigh: `I understand you may be frustrated. I'm here to help find solutions.

**Professional Communication:**
Let's keep our conversation professional so I can better assist you.

**If You're Stressed:**
• Employee Assistance Program: {eap_phone} (confidential support)
• Speak with your Store Manager

How can I help you with your question in a productive way?`,

		SeverityMedium: `I'm here to help. Let's keep our conversation professional.

**Support Available:**
If you're experiencing workplace stress, the Employee Assistance Program is available at {eap_phone}.

What work-related question can I help you with?`,

		SeverityLow: `I'm here to help with your work-related questions.

Please keep the conversation professional so I can assist you better.

What would you like to know?`,
	},

	SafetyCategoryImminentDanger: {
		SeverityCritical: `**IMMEDIATE DANGER - TAKE ACTION NOW**

**If you or someone else is in immediate danger:**
• Call 911 immediately
• Contact Store Security: {security_extension}
• Go to a safe location

**For Immediate Mental Health Crisis:**
• 988 Suicide & Crisis Lifeline: Call or text 988
• Crisis Text Line: Text HOME to 741741

**Store Emergency:**
• Alert Store Manager immediately
• Use emergency procedures
• Evacuate if necessary

**Your Safety is Priority:**
Please reach out to emergency services right now. Help is available immediately.

This conversation has been flagged for immediate follow-up by our safety team.`,
	},

	SafetyCategorySafe: {
		SeverityLow: `I'm here to help you with work-related questions about:
• Inventory and stock inquiries
• Order fulfillment procedures
• Device troubleshooting
• Store policies and workflows
• Customer service guidelines

What would you like to know?`,
	},
}

// templateFor returns the template for a category at a severity, falling
// back to the highest severity the category defines when the exact level
// is missing. Falling back downward would soften a message the rule table
// marked as more severe.
func templateFor(category SafetyCategory, severity Severity) string {
	byCategory, ok := responseTemplates[category]
	if !ok {
		return responseTemplates[SafetyCategorySafe][SeverityLow]
	}
	if t, ok := byCategory[severity]; ok {
		return t
	}
	for _, s := range []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow} {
		if t, ok := byCategory[s]; ok {
			return t
		}
	}
	return responseTemplates[SafetyCategorySafe][SeverityLow]
}

// renderTemplate substitutes deployment contact points into a template.
func renderTemplate(template, eapPhone, hrPhone, securityExtension string) string {
	r := strings.NewReplacer(
		"{eap_phone}", eapPhone,
		"{hr_phone}", hrPhone,
		"{security_extension}", securityExtension,
	)
	return r.Replace(template)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package docverify

import "github.com/AleutianAI/AleutianSentinel/services/safety"

// VerifierRules holds the per-category rule tables the verifier runs.
// All seven tables run on every document; there is no short-circuiting.
type VerifierRules struct {
	PromptInjection   safety.RuleSet
	SocialEngineering safety.RuleSet
	Cybersecurity     safety.RuleSet
	Malware           safety.RuleSet
	PII               safety.RuleSet
	Offensive         safety.RuleSet
	Policy            safety.RuleSet
}

const (
	recBlockInjection = "Block document. Contains prompt injection attempt."
	recReviewSocial   = "Review document. Contains social engineering indicators."
	recBlockCyber     = "Block document. Contains cybersecurity threat indicators."
	recBlockMalware   = "Block document. Contains malware indicators."
	recReviewPII      = "Review document. May contain PII that should not be indexed."
	recReviewContent  = "Review document. May contain inappropriate content."
	recReviewPolicy   = "Review document for policy compliance."
)

// DefaultVerifierRules returns the built-in document threat tables.
func DefaultVerifierRules() *VerifierRules {
	injection := func(id, pattern string) *safety.Rule {
		return &safety.Rule{ID: id, Category: "prompt_injection",
			Severity: safety.SeverityCritical, Confidence: 0.95,
			Pattern: pattern, Recommendation: recBlockInjection}
	}
	social := func(id string, severity safety.Severity, pattern string) *safety.Rule {
		return &safety.Rule{ID: id, Category: "social_engineering",
			Severity: severity, Confidence: 0.85,
			Pattern: pattern, Recommendation: recReviewSocial}
	}
	cyber := func(id, pattern string) *safety.Rule {
		return &safety.Rule{ID: id, Category: "cybersecurity_threat",
			Severity: safety.SeverityCritical, Confidence: 0.90,
			Pattern: pattern, Recommendation: recBlockCyber}
	}
	malware := func(id, pattern string) *safety.Rule {
		return &safety.Rule{ID: id, Category: "malware_indicators",
			Severity: safety.SeverityHigh, Confidence: 0.80,
			Pattern: pattern, Recommendation: recBlockMalware}
	}
	pii := func(id, pattern string) *safety.Rule {
		return &safety.Rule{ID: id, Category: "pii_exposure",
			Severity: safety.SeverityHigh, Confidence: 0.75,
			Pattern: pattern, Recommendation: recReviewPII, MaskPII: true}
	}
	offensive := func(id, pattern string) *safety.Rule {
		return &safety.Rule{ID: id, Category: "offensive_content",
			Severity: safety.SeverityMedium, Confidence: 0.70,
			Pattern: pattern, Recommendation: recReviewContent}
	}
	policy := func(id, pattern string) *safety.Rule {
		return &safety.Rule{ID: id, Category: "policy_violation",
			Severity: safety.SeverityMedium, Confidence: 0.65,
			Pattern: pattern, Recommendation: recReviewPolicy}
	}

	return &VerifierRules{
		PromptInjection: safety.RuleSet{
			// Direct instruction overrides
			injection("INJ-001", `ignore\s+(previous|all|above|prior)\s+(instructions|prompts|rules|directives)`),
			injection("INJ-002", `(disregard|forget|override|bypass)\s+(previous|all|system|safety)\s+(instructions|rules|prompts)`),
			injection("INJ-003", `you\s+are\s+now\s+(allowed|permitted|authorized)\s+to`),
			injection("INJ-004", `(new|updated)\s+instructions?\s*:`),
			// System prompt manipulation
			injection("INJ-005", `(system\s+prompt|original\s+prompt|base\s+prompt)`),
			injection("INJ-006", `(reveal|show|display|tell\s+me)\s+(your|the)\s+(system\s+)?prompt`),
			injection("INJ-007", `what\s+(are|were)\s+your\s+(original|initial)\s+instructions`),
			// Jailbreak attempts
			injection("INJ-008", `(jailbreak|DAN\s+mode|developer\s+mode)`),
			injection("INJ-009", `act\s+as\s+if\s+you\s+(have\s+no|are\s+not\s+bound\s+by)\s+(restrictions|rules|guidelines)`),
			injection("INJ-010", `pretend\s+(you\s+are|to\s+be)\s+(unfiltered|uncensored|unrestricted)`),
			// Role/identity override
			injection("INJ-011", `you\s+are\s+(no\s+longer|not)\s+an?\s+(AI|assistant|chatbot)`),
			injection("INJ-012", `assume\s+the\s+(role|identity)\s+of`),
			injection("INJ-013", `(become|transform\s+into)\s+an?\s+(unrestricted|unfiltered)`),
			// Safety bypass
			injection("INJ-014", `(disable|turn\s+off|deactivate)\s+(safety|content|ethical)\s+(filters?|guidelines|rules)`),
			injection("INJ-015", `bypass\s+(content\s+policy|safety\s+measures|restrictions)`),
			injection("INJ-016", `(ignore|skip)\s+(ethical|safety|content)\s+(guidelines|constraints|limitations)`),
			// Hidden instructions
			injection("INJ-017", `<!--.*?ignore.*?-->`),
			injection("INJ-018", `\[INST\].*?\[/INST\]`),
			injection("INJ-019", `<\|im_start\|>.*?<\|im_end\|>`),
			// Delimiter injection
			injection("INJ-020", `###\s+(system|user|assistant)\s*:`),
			injection("INJ-021", `<\|system\|>|<\|user\|>|<\|assistant\|>`),
			// Non-ASCII runs followed by injection keywords
			injection("INJ-022", `[^\x00-\x7F]{10,}.*?(ignore|system|prompt)`),
		},

		SocialEngineering: safety.RuleSet{
			// Authority impersonation
			social("SE-001", safety.SeverityMedium, `\b(IT\s+department|security\s+team|help\s+desk|system\s+administrator)\b.*?\b(require|need|must)\b`),
			social("SE-002", safety.SeverityHigh, `(urgent|immediate)\s+(action|attention)\s+(required|needed)`),
			social("SE-003", safety.SeverityMedium, `\b(HR|human\s+resources|management)\b.*?\b(verify|confirm|update)\b`),
			social("SE-004", safety.SeverityMedium, `(law\s+enforcement|police|FBI|IRS|government\s+agency)`),
			// Credential requests
			social("SE-005", safety.SeverityCritical, `\b(password|credential|login|username|passphrase)\b`),
			social("SE-006", safety.SeverityCritical, `(enter|provide|submit|verify)\s+(your|the)\s+(password|credentials|MFA|2FA)`),
			social("SE-007", safety.SeverityMedium, `(authentication|verification)\s+code`),
			social("SE-008", safety.SeverityMedium, `(account|profile)\s+(verification|confirmation)`),
			// Coercive language
			social("SE-009", safety.SeverityMedium, `(account|access)\s+will\s+be\s+(suspended|terminated|locked|disabled)`),
			social("SE-010", safety.SeverityHigh, `(immediate|urgent)\s+(suspension|termination|action)`),
			social("SE-011", safety.SeverityMedium, `(within|in)\s+\d+\s+(hours?|minutes?|days?)\s+(or|otherwise)`),
			social("SE-012", safety.SeverityMedium, `(failure|refusal)\s+to\s+comply\s+will\s+result\s+in`),
			// Phishing indicators
			social("SE-013", safety.SeverityMedium, `(click|visit|go\s+to)\s+(this|the)\s+(link|URL|website)`),
			social("SE-014", safety.SeverityMedium, `(download|open|execute)\s+(this|the)\s+(attachment|file|document)`),
			social("SE-015", safety.SeverityMedium, `(limited\s+time|expiring|expires\s+soon)`),
			social("SE-016", safety.SeverityHigh, `(act|respond|reply)\s+(now|immediately|within)`),
			// Impersonation
			social("SE-017", safety.SeverityMedium, `(I\s+am|this\s+is)\s+(from|calling\s+from)\s+(IT|HR|security|management)`),
			social("SE-018", safety.SeverityMedium, `(on\s+behalf\s+of|representing)\s+(IT|security|management|CEO|executive)`),
			// Financial manipulation
			social("SE-019", safety.SeverityHigh, `\b(wire\s+transfer|payment|invoice|refund)\b.*?\b(urgent|immediate|today)\b`),
			social("SE-020", safety.SeverityMedium, `(update|change|verify)\s+(payment|banking|payroll)\s+(information|details)`),
		},

		Cybersecurity: safety.RuleSet{
			// Command injection
			cyber("CYB-001", "(\\$\\(|`|;|\\||&&)\\s*(bash|sh|cmd|powershell|python|perl)"),
			cyber("CYB-002", `(curl|wget|nc|netcat|telnet)\s+-`),
			cyber("CYB-003", `(chmod|chown|sudo|su\s+-)`),
			// Privilege escalation
			cyber("CYB-004", `(sudo|su\s+root|runas\s+administrator)`),
			cyber("CYB-005", `(privilege\s+escalation|elevate\s+privileges)`),
			cyber("CYB-006", `(bypass|circumvent)\s+(UAC|authentication|authorization)`),
			// Network exploitation
			cyber("CYB-007", `(reverse\s+shell|bind\s+shell|backdoor)`),
			cyber("CYB-008", `(exploit|vulnerability|CVE-\d{4}-\d{4,})`),
			cyber("CYB-009", `(metasploit|meterpreter|cobalt\s+strike)`),
			// Malicious URLs/IPs
			cyber("CYB-010", `\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:\d{2,5}\b`),
			cyber("CYB-011", `(http|https|ftp)://.*?(exploit|payload|malware)`),
			// SQL injection
			cyber("CYB-012", `(';|";\s*)(\s*--|\s*/\*|\s*union\s+select)`),
			cyber("CYB-013", `(drop|delete|truncate)\s+table`),
			cyber("CYB-014", `exec(ute)?\s*\(`),
			// Path traversal
			cyber("CYB-015", `\.\.(/|\\){2,}`),
			cyber("CYB-016", `(file://|/etc/passwd|/etc/shadow|C:\\Windows)`),
			// Scripting attacks
			cyber("CYB-017", `<script[^>]*>.*?</script>`),
			cyber("CYB-018", `(eval|exec|system|shell_exec)\s*\(`),
			cyber("CYB-019", `(document\.cookie|window\.location)`),
		},

		Malware: safety.RuleSet{
			malware("MAL-001", `\b(ransomware|trojan|rootkit|keylogger|spyware)\b`),
			malware("MAL-002", `\b(virus|worm|malware|botnet)\b`),
			malware("MAL-003", `\b(payload|shellcode|exploit\s+kit)\b`),
			// Obfuscation
			malware("MAL-004", `(base64|hex|rot13)\s*(encode|decode)`),
			malware("MAL-005", `eval\(.*?decode`),
			malware("MAL-006", `chr\(\d+\).*?chr\(\d+\)`),
			// Encryption in suspicious context
			malware("MAL-007", `(AES|RSA|encrypt|cipher).*?(key|password|credential)`),
			// C2/Exfiltration
			malware("MAL-008", `(command\s+and\s+control|C2|exfiltrate)`),
			malware("MAL-009", `(beacon|callback|phone\s+home)`),
			malware("MAL-010", `(send|upload|transmit).*?(credentials?|passwords?|data)`),
			// File operations
			malware("MAL-011", `(download|fetch|retrieve).*?(exe|dll|bin|payload)`),
			malware("MAL-012", `(write|create).*?(registry|startup|scheduled\s+task)`),
		},

		PII: safety.RuleSet{
			// SSN
			pii("PII-001", `\b\d{3}-\d{2}-\d{4}\b`),
			pii("PII-002", `\b\d{9}\b`),
			// Credit card numbers
			pii("PII-003", `\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
			// Email addresses
			pii("PII-004", `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`),
			// Phone numbers
			pii("PII-005", `\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
			pii("PII-006", `\b\+\d{1,3}[-.\s]?\d{1,14}\b`),
			// Credentials in clear text
			pii("PII-007", `(password|passwd|pwd)\s*[:=]\s*["']?[A-Za-z0-9!@#$%^&*]{6,}`),
			pii("PII-008", `(api[_-]?key|token)\s*[:=]\s*["']?[A-Za-z0-9]{20,}`),
			// Medical records
			pii("PII-009", `\b(patient\s+id|medical\s+record|diagnosis\s+code)\b`),
			// Financial data
			pii("PII-010", `\b(account\s+number|routing\s+number|IBAN)\b`),
		},

		Offensive: safety.RuleSet{
			offensive("OFF-001", `\b(hate\s+speech|racial\s+slur|ethnic\s+slur)\b`),
			offensive("OFF-002", `\b(kill|murder|assassinate|harm|attack)\s+(you|them|associates|employees)\b`),
			offensive("OFF-003", `\b(bomb|explosive|weapon|gun)\s+(threat|attack)\b`),
			offensive("OFF-004", `\b(harass|stalk|intimidate|threaten)\b`),
			offensive("OFF-005", `\b(pornographic|explicit\s+sexual|adult\s+content)\b`),
		},

		Policy: safety.RuleSet{
			policy("POL-001", `\b(confidential|proprietary|trade\s+secret|internal\s+only)\b`),
			policy("POL-002", `\b(NDA|non-disclosure|classified)\b`),
			policy("POL-003", `\b(insider\s+(trading|information)|material\s+non-public)\b`),
			policy("POL-004", `\b(discriminate|discrimination)\s+(based\s+on|against)`),
			policy("POL-005", `\b(illegal|unlawful|prohibited\s+by\s+law)\b`),
			policy("POL-006", `\b(data\s+breach|unauthorized\s+access|stolen\s+data)\b`),
		},
	}
}

// LoadVerifierRules builds verifier rule tables from a rules directory.
// Categories absent from the directory keep the built-in defaults.
func LoadVerifierRules(dir string) (*VerifierRules, error) {
	defaults := DefaultVerifierRules()
	if dir == "" {
		return defaults, nil
	}

	byCategory, _, err := safety.LoadRuleSets(dir)
	if err != nil {
		return nil, err
	}

	pick := func(category string, fallback safety.RuleSet) safety.RuleSet {
		if rs, ok := byCategory[category]; ok {
			return rs
		}
		return fallback
	}

	return &VerifierRules{
		PromptInjection:   pick("prompt_injection", defaults.PromptInjection),
		SocialEngineering: pick("social_engineering", defaults.SocialEngineering),
		Cybersecurity:     pick("cybersecurity_threat", defaults.Cybersecurity),
		Malware:           pick("malware_indicators", defaults.Malware),
		PII:               pick("pii_exposure", defaults.PII),
		Offensive:         pick("offensive_content", defaults.Offensive),
		Policy:            pick("policy_violation", defaults.Policy),
	}, nil
}

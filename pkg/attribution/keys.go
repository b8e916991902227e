// Package attribution stores the provider message ids produced by email
// sends, keyed by the scope that caused the send, so engagement webhooks
// can be attributed back to the step and contact.
package attribution

// StepSendKey scopes an automation step send to one contact.
func StepSendKey(stepID, contactID string) string {
	return "AUTOMATION_STEP:" + stepID + ":" + contactID
}

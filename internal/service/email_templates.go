package service

import "fmt"

func greeting(name string) string {
	if name == "" {
		return "Hi,"
	}
	return fmt.Sprintf("Hi %s,", name)
}

func welcomeEmailTemplate(name, onboardingURL, appName string) (string, string) {
	subject := fmt.Sprintf("Welcome to %s", appName)
	body := fmt.Sprintf(`%s

Your account is ready. Finish the short questionnaire to get started:
%s

Best,
The %s Team`, greeting(name), onboardingURL, appName)

	return subject, body
}

func submissionReceivedTemplate(name, appName string) (string, string) {
	subject := "We received your photos"
	body := fmt.Sprintf(`%s

Thanks for sending your photos. Our team will start on your analysis shortly
and we will email you as soon as the report is ready.

Best,
The %s Team`, greeting(name), appName)

	return subject, body
}

func reportReadyTemplate(name, analysisURL, appName string) (string, string) {
	subject := fmt.Sprintf("Your %s report is ready", appName)
	body := fmt.Sprintf(`%s

Your full analysis, including your morphs and product recommendations, is ready:
%s

Best,
The %s Team`, greeting(name), analysisURL, appName)

	return subject, body
}

package service

import "fmt"

func welcomeEmailTemplate(name, dashboardURL, appName string) (string, string) {
	subject := fmt.Sprintf("Welcome to %s!", appName)
	body := fmt.Sprintf(`Hi %s,

Your account is ready. Create your first quest, add a few KPIs and watch the progress bar move.

Your dashboard: %s

Best,
The %s Team`, name, dashboardURL, appName)

	return subject, body
}

func newFollowerEmailTemplate(name, followerName, profileURL, appName string) (string, string) {
	subject := fmt.Sprintf("%s started following you on %s", followerName, appName)
	body := fmt.Sprintf(`Hi %s,

%s is now following your quests.

See their profile: %s

Best,
The %s Team`, name, followerName, profileURL, appName)

	return subject, body
}

func questCompletedEmailTemplate(name, questTitle, questURL, appName string) (string, string) {
	subject := fmt.Sprintf("Quest completed: %s", questTitle)
	body := fmt.Sprintf(`Hi %s,

Every KPI on "%s" reached its target, so the quest is now marked as completed.

%s

Best,
The %s Team`, name, questTitle, questURL, appName)

	return subject, body
}

func accountDeletedEmailTemplate(name, appName string) (string, string) {
	subject := fmt.Sprintf("Your %s account has been deleted", appName)
	body := fmt.Sprintf(`Hi %s,

Your account has been permanently deleted from %s.

Your profile, quests, KPIs, follows and uploaded files have been removed from our systems.

If you didn't request this deletion, please contact our support team immediately, though we won't be able to recover your account.

Best,
The %s Team`, name, appName, appName)

	return subject, body
}

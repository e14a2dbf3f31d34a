package telegram

// UI texts in English
const (
	startText = "🎉 Hello! I'm your Birthday Reminder Bot! 🎂\n\n" +
		"Here's what I can do:\n" +
		"- Keep track of your birthday.\n" +
		"- Wish you personally on your special day.\n" +
		"- Post a daily birthday digest in group chats.\n\n" +
		"Commands:\n" +
		"/register_birthday YYYY-MM-DD — register your birthday\n" +
		"/help — get the full command list\n\n" +
		"Add me to a group to celebrate birthdays together!"

	helpText = "🎂 Birthday Bot commands 🎂\n\n" +
		"/start — learn about this bot\n" +
		"/register_birthday YYYY-MM-DD — register your birthday\n" +
		"/my_birthday — show your registration\n" +
		"/birthdays — who celebrates today\n" +
		"/add_quote <text> — add a birthday wish to the pool\n" +
		"/quote — preview a random wish\n" +
		"/set_time HH:MM — set this group's digest time (admins only)\n" +
		"/set_default_time HH:MM — set the global notification time"

	nudgeText = "🎂 Kindly register your birthday to receive personalized wishes!\n" +
		"Message me in private and use /register_birthday YYYY-MM-DD."
)

package telegram

import "steam-party-bot/pkg/partybot"

const (
	// DriverType is the configured driver type token for the Telegram runtime.
	DriverType = "telegram"
	// DriverPlatform is the neutral platform produced by the Telegram runtime.
	DriverPlatform partybot.Platform = partybot.PlatformTelegram
)

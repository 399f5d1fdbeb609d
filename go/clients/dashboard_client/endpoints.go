package dashboard_client

const (
	// Base path of the dashboard backend API
	DefaultAPIPrefix = "/api/v1"

	// Sessions
	CurrentSessionsEndpoint = "/sessions/current"
	SessionEndpoint         = "/sessions/%s"

	// Team Picker
	TeamPickerEndpoint        = "/team_picker/%s"
	TeamPickerCommandEndpoint = "/team_picker/%s/%s"
	OpenForMeEndpoint         = "/team_picker/open_for_me"

	// Presence
	OnlinePlayersEndpoint     = "/players/online"
	SiteOnlinePlayersEndpoint = "/players/site-online"
	HeartbeatEndpoint         = "/presence/heartbeat"

	// Account
	MeEndpoint     = "/me"
	LogoutEndpoint = "/auth/logout"

	// Catalogue
	ModsEndpoint           = "/mods"
	HistorySummaryEndpoint = "/history/summary"

	// Team Picker commands
	CommandStart    = "start"
	CommandCoinToss = "coin_toss"
	CommandPick     = "pick"
	CommandFinalize = "finalize"
	CommandRestart  = "restart"
	CommandPresence = "presence"

	// Headers
	CookieHeader = "Cookie"
)

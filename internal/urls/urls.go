package urls

// Documentation URLs for guides and troubleshooting
// All URLs point to the Home Assistant documentation sites.

// AccessTokens explains how to create a long-lived access token
// from the user profile page.
const AccessTokens = "https://www.home-assistant.io/docs/authentication/#your-account-profile"

// WebsocketAPI documents the websocket API hass-update talks to.
const WebsocketAPI = "https://developers.home-assistant.io/docs/api/websocket/"

// Zeroconf covers the integration that announces Home Assistant over mDNS.
const Zeroconf = "https://www.home-assistant.io/integrations/zeroconf/"

// UpdateIntegration describes update entities, their attributes and the
// install, skip and clear_skipped services.
const UpdateIntegration = "https://www.home-assistant.io/integrations/update/"

// Backups explains how backups are created and restored, which matters
// when installing with a backup first.
const Backups = "https://www.home-assistant.io/common-tasks/general/#backups"

// Package chat runs the standup over Twitch chat.
//
// TwitchTransport adapts github.com/gempir/go-twitch-irc to the
// standup.Transport interface so the same session can be pointed at a
// Twitch channel with --transport twitch. Differences from plain IRC:
//   - the client connects with the bot username and an OAuth token passed as
//     the server password ("oauth:" is prefixed when missing);
//   - member lists arrive after JOIN via the membership capability, so
//     RequestNames is a no-op;
//   - private prompts are sent as whispers through the Helix API
//     (package twitchapi), which needs --twitch-client-id;
//   - Twitch never rejects a nickname, so ChangeNick is unsupported.
package chat

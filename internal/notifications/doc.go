// Package notifications delivers correspondence events to people.
//
// Three transports exist: Inbox writes the in-app notification rows users
// read through the API (and pushes each new row to any websocket the user has
// open through Hub), and the ntfy transport posts a short message to a
// configured ntfy topic. NewService assembles the transports the config asks
// for behind the single Service interface, filtered by the per-event toggles,
// and degrades to a no-op when everything is disabled.
package notifications

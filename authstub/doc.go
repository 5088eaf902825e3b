// Package authstub is a development stand-in for the authentication service
// the recovery flows talk to. It serves the activation, resend and password
// reset endpoints over fiber, keeps accounts and hashed codes in sqlite
// through bun, and delivers codes through a Notifier (the console by default).
package authstub

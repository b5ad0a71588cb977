// Package register provides the Steam identity registration module: /start,
// /register, /unregister and /mygames.
package register

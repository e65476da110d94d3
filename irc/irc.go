/*
Package irc holds the wire-level pieces of the daemon: line framing,
tokenizing, message rendering and numeric reply codes.

# Framing

A Framer buffers bytes read from a connection and hands back complete
CRLF terminated lines:

	var f irc.Framer
	f.Write([]byte("NICK a\r\nUSER b"))
	f.Lines() // ["NICK a"], "USER b" stays buffered

# Tokenizing

Tokenize splits on whitespace up to the first ':' and keeps everything after
it as one trailing token:

	irc.Tokenize("PRIVMSG #chan :hello  world")
	// ["PRIVMSG", "#chan", "hello  world"]

The server itself lives in package server; configuration in package config;
the daemon in irc/ircd.
*/
package irc

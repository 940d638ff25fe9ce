// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides identifier and token generation utilities.

# Identifiers

Session and user identifiers are random v4 UUIDs rendered as 32 hex
characters:

	sid := auth.NewUID()

Clients mint their own uid the same way on first launch and present it
in the X-User-Id header; the server never stores credentials for it.

# Join Tokens

Join tokens are random 24-byte (192-bit) secrets:

	token, err := auth.NewToken()

Tokens are URL-safe base64 encoded without padding. Each session gets
an owner token and a voter token at creation, and every email invite
carries its own single-use token. Whoever presents a token joins in
the role it grants, so tokens are the only access control on a
session.
*/
package auth

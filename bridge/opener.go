// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import "github.com/pkg/browser"

// Opener shows a URL to the user, normally by launching a browser.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(url string) error

// Open calls f(url).
func (f OpenerFunc) Open(url string) error { return f(url) }

// SystemOpener opens URLs in the user's default browser. The launcher's
// own output goes to browser.Stdout and browser.Stderr, which callers
// that reserve stdout for data should redirect.
type SystemOpener struct{}

// Open launches the default browser on url.
func (SystemOpener) Open(url string) error { return browser.OpenURL(url) }

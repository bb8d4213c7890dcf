/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package config

import "testing"

func TestGetEnvFallsBackWhenUnset(t *testing.T) {
	t.Setenv("SHOUTSTREAM_TEST_UNSET_KEY", "")
	if v := GetEnv("SHOUTSTREAM_TEST_UNSET_KEY", "fallback"); v != "fallback" {
		t.Fatalf("expected fallback, got %q", v)
	}
}

func TestGetEnvReturnsSetValue(t *testing.T) {
	t.Setenv("SHOUTSTREAM_TEST_KEY", "value")
	if v := GetEnv("SHOUTSTREAM_TEST_KEY", "fallback"); v != "value" {
		t.Fatalf("expected value, got %q", v)
	}
}

func TestGetEnvIntFallsBackOnInvalidInt(t *testing.T) {
	t.Setenv("SHOUTSTREAM_TEST_INT", "not-a-number")
	if v := GetEnvInt("SHOUTSTREAM_TEST_INT", 42); v != 42 {
		t.Fatalf("expected fallback 42, got %d", v)
	}
}

func TestGetEnvIntParsesValidInt(t *testing.T) {
	t.Setenv("SHOUTSTREAM_TEST_INT", "7")
	if v := GetEnvInt("SHOUTSTREAM_TEST_INT", 42); v != 7 {
		t.Fatalf("expected 7, got %d", v)
	}
}

func TestGetEnvBoolParsesAndFallsBack(t *testing.T) {
	t.Setenv("SHOUTSTREAM_TEST_BOOL", "true")
	if v := GetEnvBool("SHOUTSTREAM_TEST_BOOL", false); v != true {
		t.Fatalf("expected true, got %v", v)
	}

	t.Setenv("SHOUTSTREAM_TEST_BOOL", "")
	if v := GetEnvBool("SHOUTSTREAM_TEST_BOOL", false); v != false {
		t.Fatalf("expected fallback false, got %v", v)
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("LIBRARY_NAME", "")

	cfg := LoadConfig()

	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.LibraryName != "shoutstream" {
		t.Fatalf("expected default library name, got %q", cfg.LibraryName)
	}
}

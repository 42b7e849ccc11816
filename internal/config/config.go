/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
    "log"
    "os"
    "strconv"
    "time"

    "github.com/joho/godotenv"
)

type Config struct {
    AppEnv   string
    TZ       string
    HTTPAddr string

    // Per remote-call timeout and whole-extraction wall clock.
    HTTPTimeout    time.Duration
    ExtractTimeout time.Duration

    // Politeness throttling between consecutive remote calls.
    PageDelay    time.Duration
    CommentDelay time.Duration

    // TLS certificate validation for the Taiga endpoint. On by default;
    // disable only for self-signed internal deployments.
    TaigaVerifyTLS bool

    // Optional scheduled extraction. CronSpec plus the three Taiga
    // settings must all be present for the job to be registered.
    CronSpec     string
    TaigaBaseURL string
    TaigaToken   string
    TaigaUserID  string
}

func getenv(key, def string) string {
    v := os.Getenv(key)
    if v == "" { return def }
    return v
}

func dur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" { return def }
    d, err := time.ParseDuration(v)
    if err != nil { return def }
    return d
}

func boolenv(key string, def bool) bool {
    v := os.Getenv(key)
    if v == "" { return def }
    b, err := strconv.ParseBool(v)
    if err != nil { return def }
    return b
}

func Load() Config {
    _ = godotenv.Load()

    cfg := Config{
        AppEnv:   getenv("APP_ENV", "dev"),
        TZ:       getenv("APP_TZ", "Asia/Dubai"),
        HTTPAddr: getenv("HTTP_ADDR", ":8080"),

        HTTPTimeout:    dur("HTTP_TIMEOUT", 30*time.Second),
        ExtractTimeout: dur("EXTRACT_TIMEOUT", 300*time.Second),

        PageDelay:    dur("PAGE_DELAY", 100*time.Millisecond),
        CommentDelay: dur("COMMENT_DELAY", 50*time.Millisecond),

        TaigaVerifyTLS: boolenv("TAIGA_VERIFY_TLS", true),

        CronSpec:     getenv("CRON_SPEC", ""),
        TaigaBaseURL: getenv("TAIGA_BASE_URL", ""),
        TaigaToken:   getenv("TAIGA_TOKEN", ""),
        TaigaUserID:  getenv("TAIGA_USER_ID", ""),
    }

    // set global timezone if available
    if loc, err := time.LoadLocation(cfg.TZ); err == nil {
        time.Local = loc
    } else {
        log.Printf("warning: cannot load TZ %s: %v", cfg.TZ, err)
    }

    return cfg
}

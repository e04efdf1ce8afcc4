// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides OpenTelemetry tracing for ulm.
//
// Spans are recorded for every pipeline stage (retrieve, load docs, probe,
// compose, generate, parse). Without Setup the global no-op provider is
// used and tracing costs nothing. `ulm --trace FILE` installs a stdout
// exporter writing pretty-printed spans to FILE.
//
// # Usage
//
//	shutdown, err := telemetry.Setup(w)
//	defer shutdown(context.Background())
//
//	ctx, span := telemetry.Tracer().Start(ctx, "suggest.Pipeline.Run")
//	defer span.End()
package telemetry

// Command pipedeploy submits a SQL program and its Rust UDFs to a pipeline
// control plane and starts the pipeline.
//
// With no arguments it deploys otel.sql and udf.rs from the working
// directory as pipeline "otel" on http://localhost:28080.
package main

import (
	"context"
	"os"
)

func main() {
	os.Exit(int(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)))
}

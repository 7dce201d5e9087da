package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tuchaVshortah/financial-kg-agent/internal/bootstrap"
	"github.com/tuchaVshortah/financial-kg-agent/internal/storage"
	"github.com/tuchaVshortah/financial-kg-agent/internal/util"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
)

// buildParams assembles the connections the configured graph source
// needs. The returned cleanup closes whatever was opened and is safe to
// call even when nothing was.
func buildParams(ctx context.Context) (bootstrap.BuildParams, func(), error) {
	params := bootstrap.BuildParams{}
	cleanup := func() {}

	switch source := util.GetEnvString("GRAPH_SOURCE", "seed"); source {
	case "s3":
		client, err := storage.NewS3Client(ctx)
		if err != nil {
			return params, cleanup, fmt.Errorf("graph source %s: %w", source, err)
		}
		params.S3 = client
	case "postgres":
		conn, err := connectDB(ctx)
		if err != nil {
			return params, cleanup, fmt.Errorf("graph source %s: %w", source, err)
		}
		params.DB = conn
		cleanup = conn.Close
	}

	return params, cleanup, nil
}

// buildPipeline wires the full question pipeline for one-shot commands.
func buildPipeline(ctx context.Context) (*bootstrap.Pipeline, func(), error) {
	params, cleanup, err := buildParams(ctx)
	if err != nil {
		return nil, nil, err
	}

	client, err := bootstrap.NewCompletionClient()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	params.Client = client

	pipeline, err := bootstrap.Build(ctx, params)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return pipeline, cleanup, nil
}

// buildGraph loads just the graph, skipping the completion client, for
// commands that never generate text.
func buildGraph(ctx context.Context) (*kg.Graph, func(), error) {
	params, cleanup, err := buildParams(ctx)
	if err != nil {
		return nil, nil, err
	}

	g, err := bootstrap.BuildGraph(ctx, params)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return g, cleanup, nil
}

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	dbURL := util.GetEnv("DATABASE_URL")
	if dbURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	conn, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/mirror"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/scan"
)

// Repository implements mirror.Repository using Neo4j. Function nodes are
// keyed by unique ID so renames update in place instead of forking nodes.
type Repository struct {
	driver neo4j.DriverWithContext
}

// New creates a Neo4j-backed repository.
func New(ctx context.Context, uri, username, password string) (*Repository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Repository{driver: driver}, nil
}

func (r *Repository) SyncProject(ctx context.Context, project *model.Project, edges []scan.Edge) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx,
			"MERGE (p:Project {name: $name})",
			map[string]any{"name": project.Name}); err != nil {
			return nil, err
		}

		for _, fn := range project.Functions {
			if _, err := tx.Run(ctx,
				"MERGE (f:Function {uid: $uid}) "+
					"SET f.identifier = $identifier, f.signature = $signature, f.lifecycle = $lifecycle "+
					"MERGE (p:Project {name: $project}) "+
					"MERGE (p)-[:CONTAINS]->(f)",
				map[string]any{
					"uid":        fn.UniqueID,
					"identifier": fn.Identifier.Text,
					"signature":  fn.Signature.Text,
					"lifecycle":  string(fn.Identifier.Lifecycle),
					"project":    project.Name,
				}); err != nil {
				return nil, err
			}
		}

		// Rebuild edges so removed call references disappear.
		if _, err := tx.Run(ctx,
			"MATCH (p:Project {name: $project})-[:CONTAINS]->(:Function)-[c:CALLS]->() DELETE c",
			map[string]any{"project": project.Name}); err != nil {
			return nil, err
		}
		for _, e := range edges {
			if _, err := tx.Run(ctx,
				"MATCH (a:Function {uid: $caller}), (b:Function {uid: $callee}) "+
					"MERGE (a)-[c:CALLS {occurrence: $occurrence}]->(b)",
				map[string]any{
					"caller":     e.CallerID,
					"callee":     e.CalleeID,
					"occurrence": e.Occurrence,
				}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("sync project %s: %w", project.Name, err)
	}
	return nil
}

func (r *Repository) QueryCallees(ctx context.Context, uniqueID string) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx,
			"MATCH (:Function {uid: $uid})-[:CALLS]->(callee:Function) RETURN DISTINCT callee.identifier",
			map[string]any{"uid": uniqueID})
		if err != nil {
			return nil, err
		}
		var names []string
		for records.Next(ctx) {
			n, _ := records.Record().Get("callee.identifier")
			if s, ok := n.(string); ok {
				names = append(names, s)
			}
		}
		return names, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

var _ mirror.Repository = (*Repository)(nil)

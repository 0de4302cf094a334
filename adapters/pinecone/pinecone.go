package pinecone

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// IndexGateway wraps one Pinecone index connection used as an embedding
// cache for keyword phrases.
type IndexGateway struct {
	index *pinecone.IndexConnection
}

// NewIndexGateway connects to a Pinecone index at the given host, scoped to
// a namespace.
func NewIndexGateway(apiKey, host, namespace string) (*IndexGateway, error) {
	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}

	index, err := client.Index(pinecone.NewIndexConnParams{
		Host:      host,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pinecone index: %w", err)
	}

	return &IndexGateway{index: index}, nil
}

// FindByID looks up a vector by its exact ID. Returns (nil, nil) when the ID
// is not present in the index.
func (g *IndexGateway) FindByID(ctx context.Context, id string) (*pinecone.Vector, error) {
	resp, err := g.index.QueryByVectorId(ctx, &pinecone.QueryByVectorIdRequest{
		VectorId:        id,
		TopK:            1,
		IncludeValues:   true,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Matches) == 0 || resp.Matches[0].Vector == nil || resp.Matches[0].Vector.Id != id {
		return nil, nil
	}

	return resp.Matches[0].Vector, nil
}

// Upsert stores a vector with metadata in the index
func (g *IndexGateway) Upsert(ctx context.Context, id string, values []float32, metadata map[string]any) error {
	metadataStruct, err := structpb.NewStruct(metadata)
	if err != nil {
		return fmt.Errorf("failed to build vector metadata: %w", err)
	}

	_, err = g.index.UpsertVectors(ctx, []*pinecone.Vector{
		{
			Id:     id,
			Values: values,
			Metadata: &pinecone.Metadata{
				Fields: metadataStruct.Fields,
			},
		},
	})
	return err
}

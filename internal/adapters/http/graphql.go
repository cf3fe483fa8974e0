package http

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/baenkli/internal/core/domain"
)

// buildSchema creates the read-only GraphQL schema over the bench service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	benchType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bench",
		Fields: graphql.Fields{
			"id":                   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"lat":                  &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"lng":                  &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"ambiente_rating":      &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"view_rating":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"accessibility_rating": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"fireplace":            &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"photo_url":            &graphql.Field{Type: graphql.String},
			"photo_url_2":          &graphql.Field{Type: graphql.String},
			"description":          &graphql.Field{Type: graphql.String},
			"created_at":           &graphql.Field{Type: graphql.DateTime},
			"updated_at":           &graphql.Field{Type: graphql.DateTime},
			"distance":             &graphql.Field{Type: graphql.Float},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"benches": &graphql.Field{
				Type:        graphql.NewList(benchType),
				Description: "List benches, optionally filtered by minimum ratings and fireplace",
				Args: graphql.FieldConfigArgument{
					"ambiente":      &graphql.ArgumentConfig{Type: graphql.Int},
					"view":          &graphql.ArgumentConfig{Type: graphql.Int},
					"accessibility": &graphql.ArgumentConfig{Type: graphql.Int},
					"fireplace":     &graphql.ArgumentConfig{Type: graphql.Boolean},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					filter, err := domain.ParseFilter(
						intArg(p.Args, "ambiente"),
						intArg(p.Args, "view"),
						intArg(p.Args, "accessibility"),
						boolArg(p.Args, "fireplace"),
					)
					if err != nil {
						return nil, err
					}
					benches, err := deps.Benches.List(p.Context)
					if err != nil {
						return nil, err
					}
					return filter.Apply(benches), nil
				},
			},
			"bench": &graphql.Field{
				Type:        benchType,
				Description: "Get a bench by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, err := uuid.Parse(p.Args["id"].(string))
					if err != nil {
						return nil, errors.New("bench id must be a UUID")
					}
					b, err := deps.Benches.Get(p.Context, id.String())
					if errors.Is(err, domain.ErrBenchNotFound) {
						return nil, nil
					}
					return b, err
				},
			},
			"benchesNearby": &graphql.Field{
				Type:        graphql.NewList(benchType),
				Description: "Find benches near a location, closest first",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: defaultRadius},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lng := p.Args["lng"].(float64)
					radius := p.Args["radius"].(float64)
					limit := p.Args["limit"].(int)
					if err := (domain.GeoPoint{Lat: lat, Lng: lng}).Validate(); err != nil {
						return nil, err
					}
					if radius <= 0 || radius > maxRadius {
						return nil, errors.New("radius must be between 1 and 50000 meters")
					}
					return deps.Benches.Nearby(p.Context, lat, lng, radius, limit)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func intArg(args map[string]interface{}, name string) string {
	if v, ok := args[name].(int); ok {
		return strconv.Itoa(v)
	}
	return ""
}

func boolArg(args map[string]interface{}, name string) string {
	if v, ok := args[name].(bool); ok {
		return strconv.FormatBool(v)
	}
	return ""
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}

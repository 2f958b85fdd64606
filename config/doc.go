// Package config provides the YAML configuration of the panorama viewer and
// converts it into the settings of each component.
//
// Default returns a complete configuration. Load overlays a YAML file on the
// defaults and validates the result:
//
//	cfg, err := config.Load("panosphere.yaml")
//	if err != nil {
//	    // errors.Is(err, config.ErrInvalidConfig) for rejected values
//	}
//	viewer, err := panosphere.New(cfg, source, decoders)
//
// Durations are written as Go duration strings ("500ms", "5m"). Angles are
// in degrees.
package config

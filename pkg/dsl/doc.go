/*
Package dsl builds machine definitions in Go instead of YAML.

	b := dsl.New("Idle")
	b.Ports("in1", "out1")
	b.State("Idle")
	b.State("Running").Initial("Warmup")
	b.State("Warmup").Parent("Running")
	b.From("Idle").On("in1.Start").To("Running").Do(dsl.Send("out1", "Started", nil))
	b.Link("Starter", "out1", "Engine", "in1")

	def, err := b.Build()

Build validates the definition, so the result can be handed straight to
registry.NewMachine or hsm.New.
*/
package dsl

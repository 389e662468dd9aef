package main

import (
	"fmt"

	"github.com/liweinan/tcprest"
)

// HelloWorldResource, Calculator, EchoResource, and ValidationResource are
// demo resources that exercise the engine's descriptor-based method
// resolution and, through ValidationResource, its business-exception marking
// and server-error classification paths end to end.
type HelloWorldResource struct{}

func (HelloWorldResource) HelloWorld() string { return "Hello, World!" }

type Calculator struct{}

func (Calculator) Add(a, b int) int { return a + b }

func (Calculator) Add3(a, b, c int) int { return a + b + c }

type EchoResource struct{}

func (EchoResource) Echo(s string) string { return s }

type ValidationResource struct{}

func (ValidationResource) ValidateAge(age int) (int, error) {
	if age < 0 {
		return 0, tcprest.AsBusinessError(fmt.Errorf("Age must be non-negative"))
	}
	return age, nil
}

func (ValidationResource) CauseNullPointer() (string, error) {
	var p *string
	return *p, nil // panics; invoker.Invoke recovers and classifies as a server error
}

func registerDemoResources(server *tcprest.Server) {
	// registered under bare wire names so clients don't need to know this
	// binary's package path.
	for name, r := range map[string]interface{}{
		"HelloWorldResource": HelloWorldResource{},
		"Calculator":         Calculator{},
		"EchoResource":       EchoResource{},
		"ValidationResource": ValidationResource{},
	} {
		if err := server.AddResourceAs(r, name); err != nil {
			log.Fatalf("registering demo resource: %v", err)
		}
	}
}

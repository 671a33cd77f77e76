// Package mcp exposes rollkit over the Model Context Protocol.
//
// Tools: roll, parse, replay and (with a macro library) macro.
// Resources: rollkit://macros.
package mcp

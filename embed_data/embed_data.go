package embed_data

import _ "embed"

//go:embed prompts/class_skeleton.tmpl
var ClassSkeletonPrompt []byte

//go:embed prompts/function_skeleton.tmpl
var FunctionSkeletonPrompt []byte

//go:embed prompts/test_skeleton.tmpl
var TestSkeletonPrompt []byte

//go:embed prompts/fix.tmpl
var FixPrompt []byte

//go:embed prompts/propose_modules.tmpl
var ProposeModulesPrompt []byte

//go:embed tree-sitter/queries/python.json
var PythonQuery []byte

//go:embed tree-sitter/queries/go.json
var GoQuery []byte

//go:embed model_details.json
var ModelDetails []byte

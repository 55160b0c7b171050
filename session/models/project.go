package models

// ProjectDescriptor names a project and its workspace. It is fixed once intake starts.
type ProjectDescriptor struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// ModuleSpec is one module of the project; Name keys its source file.
type ModuleSpec struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// FunctionSpec is a function appended to its owning module's file.
type FunctionSpec struct {
	Module      string `yaml:"module" json:"module"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Package formats parses the files a model source serves: JSON model
// documents (format 3.1) and the model index that names them.
package formats

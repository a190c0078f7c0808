// Package helpers provides git and filesystem fixtures shared by package tests.
package helpers

package qdrant

var NewDriverWithClient = newDriver

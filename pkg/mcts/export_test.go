package mcts

var Backpropagate = backpropagate

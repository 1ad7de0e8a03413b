// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package lottery

// winningNumber é o número sorteado desta edição.
const winningNumber = 7574

// HasWon decide se uma aposta foi premiada. A regra é uma função pura e
// determinística dos campos da aposta, para que os testes possam fixar os
// ganhadores esperados a partir de entradas literais.
func HasWon(b Bet) bool {
	return b.Number == winningNumber
}
